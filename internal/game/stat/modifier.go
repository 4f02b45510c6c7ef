package stat

import (
	"strings"

	"github.com/udisondev/spellcore/internal/model"
)

// Kind defines how a stat modifier is applied.
type Kind int8

const (
	Flat    Kind = iota // Additive bonus (e.g. +100 attack)
	Percent             // Fractional bonus summed then applied once (0.2 = +20%)
)

// ParseKind converts "flat"/"add" and "percent"/"pct"/"mul" to Kind.
// Anything else is Flat.
func ParseKind(s string) Kind {
	switch {
	case strings.EqualFold(s, "percent"), strings.EqualFold(s, "pct"), strings.EqualFold(s, "mul"):
		return Percent
	default:
		return Flat
	}
}

// Modifier represents a single stat modification.
// Multiple modifiers can stack on the same stat.
type Modifier struct {
	Stat  model.Stat
	Kind  Kind
	Value float64
}

// Handle identifies an installed modifier so it can be removed exactly.
type Handle uint64
