package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udisondev/spellcore/internal/model"
)

type fixedBase map[model.Stat]float64

func (f fixedBase) BaseStat(_ model.EntityID, s model.Stat) float64 { return f[s] }

func TestService_GetStat(t *testing.T) {
	svc := NewService(fixedBase{model.StatAttack: 100})

	svc.ApplyModifier(1, Modifier{Stat: model.StatAttack, Kind: Flat, Value: 20})
	svc.ApplyModifier(1, Modifier{Stat: model.StatAttack, Kind: Percent, Value: 0.5})
	svc.ApplyModifier(1, Modifier{Stat: model.StatDefense, Kind: Flat, Value: 7})

	assert.InDelta(t, 180.0, svc.GetStat(1, model.StatAttack), 1e-9)
	assert.InDelta(t, 7.0, svc.GetStat(1, model.StatDefense), 1e-9)
	assert.InDelta(t, 100.0, svc.GetStat(2, model.StatAttack), 1e-9, "other units are untouched")
}

func TestService_RemoveModifier(t *testing.T) {
	svc := NewService(fixedBase{model.StatMoveSpeed: 10})

	slow := svc.ApplyModifier(1, Modifier{Stat: model.StatMoveSpeed, Kind: Percent, Value: -0.5})
	assert.InDelta(t, 5.0, svc.GetStat(1, model.StatMoveSpeed), 1e-9)

	assert.True(t, svc.RemoveModifier(1, slow))
	assert.False(t, svc.RemoveModifier(1, slow), "second removal is a no-op")
	assert.InDelta(t, 10.0, svc.GetStat(1, model.StatMoveSpeed), 1e-9)
	assert.Equal(t, 0, svc.Count(1))
}

func TestService_NeverNegative(t *testing.T) {
	svc := NewService(fixedBase{model.StatDefense: 5})
	svc.ApplyModifier(1, Modifier{Stat: model.StatDefense, Kind: Flat, Value: -50})

	assert.Equal(t, 0.0, svc.GetStat(1, model.StatDefense))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"flat", Flat},
		{"ADD", Flat},
		{"percent", Percent},
		{"MUL", Percent},
		{"", Flat},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseKind(tt.in), tt.in)
	}
}
