package engine

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spellcore/internal/data"
	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/skill"
	"github.com/udisondev/spellcore/internal/journal"
	"github.com/udisondev/spellcore/internal/model"
)

const catalogYAML = `
buffs:
  - id: regrowth
    unique: global
    duration: 6s
    tick_interval: 2s
    effect:
      type: HealOverTime
      params: {amount: "5"}
skills:
  - id: cleave
    cooldown: 5s
    cast:
      - kind: target
        type: sphere
        params: {radius: "5", around_caster: "true"}
        children:
          - kind: condition
            type: team
            params: {relation: enemy}
            children:
              - kind: mechanic
                type: damage
                params: {amount: "30"}
                counts_as_cast: true
  - id: regrowth
    cast:
      - kind: target
        type: sphere
        params: {radius: "5", around_caster: "true"}
        children:
          - kind: condition
            type: team
            params: {relation: enemy}
            children:
              - kind: mechanic
                type: apply_buff
                params: {buff: regrowth}
                counts_as_cast: true
`

func newEngine(t *testing.T, opts ...Option) (*Engine, *data.Catalog) {
	t.Helper()
	c, err := data.Parse([]byte(catalogYAML))
	require.NoError(t, err)

	e := New(append([]Option{WithTickInterval(time.Second)}, opts...)...)
	addUnit(t, e, 1, model.TeamPlayers, 0, 0)
	addUnit(t, e, 2, model.TeamMonsters, 2, 0)
	for _, def := range c.Skills() {
		e.Learn(1, def)
	}
	return e, c
}

func addUnit(t *testing.T, e *Engine, id model.EntityID, team model.Team, x, y float64) {
	t.Helper()
	u := model.NewUnit(id, "unit", team, mgl64.Vec3{x, y, 0}, 100)
	require.NoError(t, e.AddUnit(u))
}

func health(e *Engine, id model.EntityID) int32 {
	cur, _ := e.World().Health(id)
	return cur
}

func TestEngine_StepRunsCastAndBuffs(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.Cast(1, "cleave")
	require.NoError(t, err)
	_, err = e.Cast(1, "regrowth")
	require.NoError(t, err)
	assert.Equal(t, int32(70), health(e, 2))

	var got []int32
	for range 6 {
		e.Step(time.Second)
		got = append(got, health(e, 2))
	}
	assert.Equal(t, []int32{70, 75, 75, 80, 80, 85}, got)
	assert.Equal(t, int64(6), e.Steps())
	assert.Equal(t, 6*time.Second, e.Now())

	l, ok := e.Buffs().Find(2)
	require.True(t, ok)
	assert.Zero(t, l.Len())
}

func TestEngine_SubmitRunsOnNextStep(t *testing.T) {
	e, _ := newEngine(t)

	res, err := e.SubmitCast(1, "cleave")
	require.NoError(t, err)
	assert.Equal(t, int32(100), health(e, 2), "nothing runs before the step")

	e.Step(time.Second)
	require.NoError(t, <-res)
	assert.Equal(t, int32(70), health(e, 2))

	res, err = e.SubmitCast(1, "cleave")
	require.NoError(t, err)
	e.Step(time.Second)
	assert.ErrorIs(t, <-res, skill.ErrOnCooldown)

	res, err = e.SubmitCast(9, "cleave")
	require.NoError(t, err)
	e.Step(time.Second)
	assert.ErrorIs(t, <-res, skill.ErrUnknownSkill)
}

func TestEngine_SubmitNeverBlocks(t *testing.T) {
	e := New(WithQueueSize(1))
	require.NoError(t, e.Submit(func(*Engine) {}))
	assert.ErrorIs(t, e.Submit(func(*Engine) {}), ErrQueueFull)
}

func TestEngine_TimersRunInOrder(t *testing.T) {
	e := New()
	var order []string
	e.At(2*time.Second, func(*Engine) { order = append(order, "b") })
	e.At(time.Second, func(*Engine) { order = append(order, "a") })
	e.At(2*time.Second, func(*Engine) { order = append(order, "c") })
	e.After(0, func(*Engine) { order = append(order, "now") })
	assert.Equal(t, 4, e.Pending())

	e.Step(500 * time.Millisecond)
	assert.Equal(t, []string{"now"}, order)

	e.Step(500 * time.Millisecond)
	e.Step(time.Second)
	assert.Equal(t, []string{"now", "a", "b", "c"}, order)
	assert.Zero(t, e.Pending())
}

func TestEngine_RemoveUnitTearsDown(t *testing.T) {
	e, c := newEngine(t)
	_, err := e.Cast(1, "regrowth")
	require.NoError(t, err)
	regrowth, _ := c.Buffs().Lookup("regrowth")

	l, ok := e.Buffs().Find(2)
	require.True(t, ok)
	assert.True(t, l.Has(regrowth.ID))

	e.RemoveUnit(1)
	assert.False(t, e.World().Exists(1))
	assert.False(t, l.Has(regrowth.ID), "buffs applied by the removed caster's skills are retracted")

	_, err = e.Cast(1, "cleave")
	assert.ErrorIs(t, err, skill.ErrUnknownSkill)
}

func TestEngine_AutoCast(t *testing.T) {
	e, _ := newEngine(t)
	e.AutoCast(1, 10)

	e.Step(time.Second)
	assert.Less(t, health(e, 2), int32(100))
	assert.Equal(t, 1, e.AI().Count())

	e.RemoveUnit(1)
	assert.Zero(t, e.AI().Count())
}

func TestEngine_JournalHandoff(t *testing.T) {
	sink := &captureSink{}
	j := journal.New(sink, journal.Options{BatchSize: 100, FlushInterval: time.Hour})
	e, _ := newEngine(t, WithJournal(j))

	_, err := e.Cast(1, "cleave")
	require.NoError(t, err)
	assert.Equal(t, 2, j.Pending(), "commit and damage rows")

	e.Step(time.Second)
	assert.Zero(t, j.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))
	assert.Equal(t, int64(2), j.Written())
	assert.Equal(t, []journal.Kind{journal.KindCommit, journal.KindDamage}, sink.kinds)
}

func TestEngine_StartAndStop(t *testing.T) {
	e := New(WithTickInterval(5 * time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	require.Eventually(t, func() bool { return e.Steps() >= 3 }, time.Second, time.Millisecond)
	e.Stop()
	e.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestEngine_StartStopsOnContext(t *testing.T) {
	e := New(WithTickInterval(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestEngine_DeathEventPublished(t *testing.T) {
	e, _ := newEngine(t)
	var died []model.EntityID
	event.Subscribe(e.Bus(), func(ev event.UnitDied) { died = append(died, ev.Unit) })

	e.World().Damage(1, 2, 1000)
	assert.Equal(t, []model.EntityID{2}, died)
}

type captureSink struct {
	kinds []journal.Kind
}

func (s *captureSink) InsertBatch(_ context.Context, entries []journal.Entry) error {
	for _, en := range entries {
		s.kinds = append(s.kinds, en.Kind)
	}
	return nil
}
