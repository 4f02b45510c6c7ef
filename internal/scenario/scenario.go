// Package scenario loads a scripted encounter and schedules it on an engine.
package scenario

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/spellcore/internal/data"
	"github.com/udisondev/spellcore/internal/engine"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/model"
)

// Scenario is a set of units and the casts they make.
type Scenario struct {
	Duration time.Duration `yaml:"duration"`
	Units    []Unit        `yaml:"units"`
	Casts    []Cast        `yaml:"casts"`
}

// Unit places one unit and teaches it skills.
type Unit struct {
	ID        uint32   `yaml:"id"`
	Name      string   `yaml:"name"`
	Team      string   `yaml:"team"` // players, monsters, neutral
	X         float64  `yaml:"x"`
	Y         float64  `yaml:"y"`
	MaxHealth int32    `yaml:"max_health"`
	Skills    []string `yaml:"skills"`
	// AutoCast puts the unit under AI control with this aggro range. Zero leaves it scripted.
	AutoCast float64 `yaml:"auto_cast"`
}

// Cast is one scripted cast.
type Cast struct {
	At     time.Duration `yaml:"at"`
	Caster uint32        `yaml:"caster"`
	Skill  string        `yaml:"skill"`
	Aim    []float64     `yaml:"aim"` // optional x, y
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks references between units and casts.
func (s *Scenario) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", s.Duration)
	}
	units := make(map[uint32]bool, len(s.Units))
	for i, u := range s.Units {
		if !model.EntityID(u.ID).Valid() {
			return fmt.Errorf("units[%d]: invalid id %d", i, u.ID)
		}
		if units[u.ID] {
			return fmt.Errorf("units[%d]: duplicate id %d", i, u.ID)
		}
		if _, err := parseTeam(u.Team); err != nil {
			return fmt.Errorf("units[%d]: %w", i, err)
		}
		if u.MaxHealth <= 0 {
			return fmt.Errorf("units[%d]: max_health must be positive", i)
		}
		units[u.ID] = true
	}
	for i, c := range s.Casts {
		if !units[c.Caster] {
			return fmt.Errorf("casts[%d]: unknown caster %d", i, c.Caster)
		}
		if c.At < 0 || c.At > s.Duration {
			return fmt.Errorf("casts[%d]: at %v outside [0, %v]", i, c.At, s.Duration)
		}
		if len(c.Aim) != 0 && len(c.Aim) != 2 {
			return fmt.Errorf("casts[%d]: aim wants 2 coordinates, got %d", i, len(c.Aim))
		}
	}
	return nil
}

// Apply adds the units to e, teaches their skills from c and schedules every cast
// and the final stop.
func (s *Scenario) Apply(e *engine.Engine, c *data.Catalog) error {
	for _, u := range s.Units {
		team, _ := parseTeam(u.Team)
		name := u.Name
		if name == "" {
			name = fmt.Sprintf("unit-%d", u.ID)
		}
		id := model.EntityID(u.ID)
		if err := e.AddUnit(model.NewUnit(id, name, team, mgl64.Vec3{u.X, u.Y, 0}, u.MaxHealth)); err != nil {
			return err
		}
		for _, skillName := range u.Skills {
			def, ok := c.Skill(skillName)
			if !ok {
				return fmt.Errorf("unit %d: unknown skill %q", u.ID, skillName)
			}
			e.Learn(id, def)
		}
		if u.AutoCast > 0 {
			e.AutoCast(id, u.AutoCast)
		}
	}

	for _, sc := range s.Casts {
		var opts []effect.CastOption
		if len(sc.Aim) == 2 {
			opts = append(opts, effect.WithAimPoint(mgl64.Vec3{sc.Aim[0], sc.Aim[1], 0}))
		}
		e.At(sc.At, func(e *engine.Engine) {
			if _, err := e.Cast(model.EntityID(sc.Caster), sc.Skill, opts...); err != nil {
				slog.Warn("scripted cast rejected",
					"caster", sc.Caster,
					"skill", sc.Skill,
					"at", sc.At,
					"error", err)
			}
		})
	}

	e.At(s.Duration, func(e *engine.Engine) {
		slog.Info("scenario finished", "duration", s.Duration, "steps", e.Steps())
		e.Stop()
	})
	return nil
}

func parseTeam(s string) (model.Team, error) {
	switch s {
	case "players":
		return model.TeamPlayers, nil
	case "monsters":
		return model.TeamMonsters, nil
	case "", "neutral":
		return model.TeamNeutral, nil
	default:
		return 0, fmt.Errorf("unknown team %q", s)
	}
}
