package skill

import (
	"fmt"

	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/model"
)

// Book holds the skill instances of one caster.
type Book struct {
	caster model.EntityID
	runner *effect.Runner
	owners Owners

	skills map[string]*Instance
	order  []string
}

// NewBook creates an empty book for caster.
func NewBook(caster model.EntityID, runner *effect.Runner, owners Owners) *Book {
	return &Book{
		caster: caster,
		runner: runner,
		owners: owners,
		skills: make(map[string]*Instance),
	}
}

// Caster returns the book's owner.
func (b *Book) Caster() model.EntityID { return b.caster }

// Learn adds def and runs its init chain. A skill learned again replaces the old instance.
func (b *Book) Learn(def *Definition) *Instance {
	if old, ok := b.skills[def.Name]; ok {
		old.Teardown()
	} else {
		b.order = append(b.order, def.Name)
	}
	inst := NewInstance(def, b.caster, b.runner, b.owners)
	b.skills[def.Name] = inst
	inst.Init()
	return inst
}

// Get returns the instance of the named skill.
func (b *Book) Get(name string) (*Instance, bool) {
	inst, ok := b.skills[name]
	return inst, ok
}

// Cast casts the named skill.
func (b *Book) Cast(name string, aim ...effect.CastOption) (*effect.CastContext, error) {
	inst, ok := b.skills[name]
	if !ok {
		return nil, fmt.Errorf("casting %q: %w", name, ErrUnknownSkill)
	}
	cc, err := inst.Cast(aim...)
	if err != nil {
		return nil, fmt.Errorf("casting %q: %w", name, err)
	}
	return cc, nil
}

// Forget tears down and removes the named skill.
func (b *Book) Forget(name string) bool {
	inst, ok := b.skills[name]
	if !ok {
		return false
	}
	inst.Teardown()
	delete(b.skills, name)
	for idx, n := range b.order {
		if n == name {
			b.order = append(b.order[:idx], b.order[idx+1:]...)
			break
		}
	}
	return true
}

// Names returns skill names in the order they were learned.
func (b *Book) Names() []string {
	return append([]string(nil), b.order...)
}

// Teardown tears down every skill.
func (b *Book) Teardown() {
	for _, name := range b.order {
		b.skills[name].Teardown()
	}
}
