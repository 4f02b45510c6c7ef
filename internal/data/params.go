package data

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
)

// Params reads the string parameters of one catalog node.
// The first conversion error is kept and reported by Err; later reads return defaults.
type Params struct {
	path   string
	values map[string]string
	used   map[string]bool
	err    error

	chains map[string]*effect.Chain
	buffs  *buff.Registry
}

func newParams(path string, values map[string]string, chains map[string]*effect.Chain, buffs *buff.Registry) *Params {
	return &Params{
		path:   path,
		values: values,
		used:   make(map[string]bool, len(values)),
		chains: chains,
		buffs:  buffs,
	}
}

// Path returns the node path used in error messages.
func (p *Params) Path() string { return p.path }

// Err returns the first error recorded while reading.
func (p *Params) Err() error { return p.err }

func (p *Params) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: param %s: %w", p.path, key, err)
	}
}

func (p *Params) lookup(key string) (string, bool) {
	p.used[key] = true
	v, ok := p.values[key]
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

// Has reports whether key is set.
func (p *Params) Has(key string) bool {
	_, ok := p.lookup(key)
	return ok
}

// String returns the raw value of key.
func (p *Params) String(key, def string) string {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	return v
}

// Require returns the value of key or records an error when it is missing.
func (p *Params) Require(key string) string {
	v, ok := p.lookup(key)
	if !ok {
		p.fail(key, fmt.Errorf("required"))
	}
	return v
}

func (p *Params) Float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *Params) Int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *Params) Bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

// Duration accepts Go duration strings ("1.5s", "250ms") or plain seconds.
func (p *Params) Duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := parseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

// Mask parses a comma separated list of layers: unit, summon, structure, all.
func (p *Params) Mask(key string, def model.Layer) model.Layer {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	var mask model.Layer
	for _, name := range strings.Split(v, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "unit", "units":
			mask |= model.LayerUnit
		case "summon", "summons":
			mask |= model.LayerSummon
		case "structure", "structures":
			mask |= model.LayerStructure
		case "all":
			mask |= model.LayerAll
		default:
			p.fail(key, fmt.Errorf("unknown layer %q", name))
			return def
		}
	}
	return mask
}

func (p *Params) Relation(key string, def model.Relation) model.Relation {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	r, ok := model.ParseRelation(v)
	if !ok {
		p.fail(key, fmt.Errorf("unknown relation %q", v))
		return def
	}
	return r
}

func (p *Params) Role(key string, def effect.Role) effect.Role {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	r, ok := effect.ParseRole(v)
	if !ok {
		p.fail(key, fmt.Errorf("unknown role %q", v))
		return def
	}
	return r
}

// Modifiers reads "stat", "value" and "kind" the way the StatModifier buff effect does.
func (p *Params) Modifiers() []stat.Modifier {
	statsRaw, ok := p.lookup("stat")
	if !ok {
		return nil
	}
	valuesRaw := p.Require("value")
	kind := stat.ParseKind(p.String("kind", "flat"))

	stats := strings.Split(statsRaw, ",")
	values := strings.Split(valuesRaw, ",")
	if len(stats) != len(values) {
		p.fail("value", fmt.Errorf("stat/value count mismatch: %d != %d", len(stats), len(values)))
		return nil
	}
	mods := make([]stat.Modifier, 0, len(stats))
	for i, s := range stats {
		v, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil {
			p.fail("value", err)
			return nil
		}
		mods = append(mods, stat.Modifier{Stat: model.Stat(strings.TrimSpace(s)), Kind: kind, Value: v})
	}
	return mods
}

// Buff resolves the buff named by key.
func (p *Params) Buff(key string) *buff.Definition {
	name := p.Require(key)
	if name == "" {
		return nil
	}
	def, ok := p.buffs.Lookup(name)
	if !ok {
		p.fail(key, fmt.Errorf("unknown buff %q", name))
		return nil
	}
	return def
}

// Chain returns the nested chain declared under name.
func (p *Params) Chain(name string, required bool) *effect.Chain {
	p.used["chains."+name] = true
	c, ok := p.chains[name]
	if !ok && required {
		p.fail("chains."+name, fmt.Errorf("required"))
	}
	return c
}

// unused returns the keys nothing read, sorted.
func (p *Params) unused() []string {
	var keys []string
	for k := range p.values {
		if !p.used[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (p *Params) unusedChains() []string {
	var names []string
	for name := range p.chains {
		if !p.used["chains."+name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseDuration(v string) (time.Duration, error) {
	if strings.EqualFold(v, "infinite") {
		return buff.Infinite, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
