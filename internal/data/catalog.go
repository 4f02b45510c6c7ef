// Package data loads the content catalog: buff definitions and skills built from
// operator nodes.
package data

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/game/skill"
	"github.com/udisondev/spellcore/internal/model"
)

type catalogFile struct {
	Buffs  []buffSpec  `yaml:"buffs"`
	Skills []skillSpec `yaml:"skills"`
}

type buffSpec struct {
	ID           string     `yaml:"id"`
	Unique       string     `yaml:"unique"`
	Duration     string     `yaml:"duration"`
	TickInterval string     `yaml:"tick_interval"`
	TickOnApply  bool       `yaml:"tick_on_apply"`
	Effect       effectSpec `yaml:"effect"`
}

type effectSpec struct {
	Type   string            `yaml:"type"`
	Params map[string]string `yaml:"params"`
}

type skillSpec struct {
	ID         string     `yaml:"id"`
	Cooldown   string     `yaml:"cooldown"`
	AllowWhile []string   `yaml:"allow_while"`
	Init       []nodeSpec `yaml:"init"`
	Cast       []nodeSpec `yaml:"cast"`
}

type nodeSpec struct {
	Kind         string                `yaml:"kind"`
	Type         string                `yaml:"type"`
	Label        string                `yaml:"label"`
	Params       map[string]string     `yaml:"params"`
	CountsAsCast bool                  `yaml:"counts_as_cast"`
	Children     []nodeSpec            `yaml:"children"`
	Chains       map[string][]nodeSpec `yaml:"chains"`
}

// Catalog is the loaded, validated content.
type Catalog struct {
	buffs       *buff.Registry
	skills      map[string]*skill.Definition
	order       []string
	fingerprint string
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	slog.Info("loaded catalog",
		"path", path,
		"buffs", c.buffs.Len(),
		"skills", len(c.order),
		"fingerprint", c.fingerprint[:12])
	return c, nil
}

// Parse builds a catalog from raw YAML. Buffs are defined first so skills can
// reference any of them regardless of file order.
func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	sum := blake2b.Sum256(raw)
	c := &Catalog{
		buffs:       buff.NewRegistry(),
		skills:      make(map[string]*skill.Definition, len(f.Skills)),
		fingerprint: hex.EncodeToString(sum[:]),
	}

	for i, bs := range f.Buffs {
		def, err := bs.definition()
		if err != nil {
			return nil, fmt.Errorf("buffs[%d]: %w", i, err)
		}
		if _, err := c.buffs.Define(def); err != nil {
			return nil, fmt.Errorf("buffs[%d]: %w", i, err)
		}
	}

	for i, ss := range f.Skills {
		def, err := c.buildSkill(fmt.Sprintf("skills[%d]", i), ss)
		if err != nil {
			return nil, err
		}
		if _, dup := c.skills[def.Name]; dup {
			return nil, fmt.Errorf("skills[%d]: skill %q defined twice", i, def.Name)
		}
		c.skills[def.Name] = def
		c.order = append(c.order, def.Name)
	}
	return c, nil
}

// Buffs returns the buff registry.
func (c *Catalog) Buffs() *buff.Registry { return c.buffs }

// Skill returns the named skill definition.
func (c *Catalog) Skill(name string) (*skill.Definition, bool) {
	d, ok := c.skills[name]
	return d, ok
}

// Skills returns skill definitions in file order.
func (c *Catalog) Skills() []*skill.Definition {
	out := make([]*skill.Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.skills[name])
	}
	return out
}

// Fingerprint returns the hex blake2b-256 digest of the raw catalog bytes.
func (c *Catalog) Fingerprint() string { return c.fingerprint }

func (bs buffSpec) definition() (buff.Definition, error) {
	unique, err := buff.ParseUniqueMode(bs.Unique)
	if err != nil {
		return buff.Definition{}, fmt.Errorf("buff %q: %w", bs.ID, err)
	}
	duration, err := parseDuration(strings.TrimSpace(bs.Duration))
	if err != nil {
		return buff.Definition{}, fmt.Errorf("buff %q: duration: %w", bs.ID, err)
	}
	var interval time.Duration
	if s := strings.TrimSpace(bs.TickInterval); s != "" {
		if interval, err = parseDuration(s); err != nil {
			return buff.Definition{}, fmt.Errorf("buff %q: tick_interval: %w", bs.ID, err)
		}
	}
	return buff.Definition{
		Name:         bs.ID,
		Unique:       unique,
		Duration:     duration,
		TickInterval: interval,
		TickOnApply:  bs.TickOnApply,
		Effect:       bs.Effect.Type,
		Params:       bs.Effect.Params,
	}, nil
}

func (c *Catalog) buildSkill(path string, ss skillSpec) (*skill.Definition, error) {
	if ss.ID == "" {
		return nil, fmt.Errorf("%s: skill without id", path)
	}
	path = fmt.Sprintf("%s(%s)", path, ss.ID)

	def := &skill.Definition{Name: ss.ID}
	if s := strings.TrimSpace(ss.Cooldown); s != "" {
		cd, err := parseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: cooldown: %w", path, err)
		}
		def.Cooldown = cd
	}
	for _, name := range ss.AllowWhile {
		st, ok := model.ParseState(name)
		if !ok {
			return nil, fmt.Errorf("%s: allow_while: unknown state %q", path, name)
		}
		def.AllowWhile |= st
	}

	arena := effect.NewArena()
	var err error
	if def.Cast, err = c.buildChain(arena, path+".cast", ss.ID, ss.Cast); err != nil {
		return nil, err
	}
	if def.Init, err = c.buildChain(arena, path+".init", ss.ID+"/init", ss.Init); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// buildChain adds nodes to arena and returns a chain rooted at them, or nil when
// nodes is empty.
func (c *Catalog) buildChain(arena *effect.Arena, path, name string, nodes []nodeSpec) (*effect.Chain, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	roots := make([]effect.NodeID, 0, len(nodes))
	for i, n := range nodes {
		id, err := c.buildNode(arena, fmt.Sprintf("%s[%d]", path, i), name, n)
		if err != nil {
			return nil, err
		}
		roots = append(roots, id)
	}
	return arena.Chain(name, roots...), nil
}

// buildNode adds the subtree under n children first, so parents only reference
// nodes already in the arena.
func (c *Catalog) buildNode(arena *effect.Arena, path, chainName string, n nodeSpec) (effect.NodeID, error) {
	path = fmt.Sprintf("%s(%s %s)", path, n.Kind, n.Type)

	chains := make(map[string]*effect.Chain, len(n.Chains))
	for name, nodes := range n.Chains {
		if len(nodes) == 0 {
			return 0, fmt.Errorf("%s: chain %q is empty", path, name)
		}
		ch, err := c.buildChain(arena, path+".chains."+name, chainName+"/"+name, nodes)
		if err != nil {
			return 0, err
		}
		chains[name] = ch
	}

	children := make([]effect.NodeID, 0, len(n.Children))
	for i, child := range n.Children {
		id, err := c.buildNode(arena, fmt.Sprintf("%s.children[%d]", path, i), chainName, child)
		if err != nil {
			return 0, err
		}
		children = append(children, id)
	}

	p := newParams(path, n.Params, chains, c.buffs)
	op, err := buildOp(strings.ToLower(n.Kind), n.Type, p)
	if err != nil {
		return 0, err
	}
	if err := p.Err(); err != nil {
		return 0, err
	}
	if extra := p.unused(); len(extra) > 0 {
		return 0, fmt.Errorf("%s: unknown params %s", path, strings.Join(extra, ", "))
	}
	if extra := p.unusedChains(); len(extra) > 0 {
		return 0, fmt.Errorf("%s: unknown chains %s", path, strings.Join(extra, ", "))
	}

	id, err := arena.Add(effect.Node{
		Op:           op,
		Children:     children,
		CountsAsCast: n.CountsAsCast,
		Label:        n.Label,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}
