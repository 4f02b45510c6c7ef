package model

import "strings"

// EntityID is the handle of a unit in the world.
// Zero is the invalid handle and doubles as "no entity" for nullable fields.
type EntityID uint32

// Valid reports whether id refers to an entity.
func (id EntityID) Valid() bool {
	return id != 0
}

// Team identifies the side a unit fights for.
type Team uint8

const (
	TeamNeutral Team = iota
	TeamPlayers
	TeamMonsters
)

// Relation describes how one unit sees another.
type Relation uint8

const (
	RelationSelf Relation = iota
	RelationAlly
	RelationEnemy
)

// RelationBetween returns how a sees b.
// Neutral units are enemies of everyone except themselves.
func RelationBetween(a, b EntityID, teamA, teamB Team) Relation {
	if a == b {
		return RelationSelf
	}
	if teamA == teamB && teamA != TeamNeutral {
		return RelationAlly
	}
	return RelationEnemy
}

// ParseRelation converts a content string ("self", "ally", "enemy") to Relation.
func ParseRelation(s string) (Relation, bool) {
	switch strings.ToLower(s) {
	case "self":
		return RelationSelf, true
	case "ally", "allies":
		return RelationAlly, true
	case "enemy", "enemies":
		return RelationEnemy, true
	default:
		return 0, false
	}
}

// Layer is a bitmask used as the filter mask of overlap queries.
type Layer uint32

const (
	LayerUnit Layer = 1 << iota
	LayerStructure
	LayerSummon

	LayerAll Layer = 0xFFFFFFFF
)

// State is a set of busy/control flags on a unit.
type State uint32

const (
	StateStunned State = 1 << iota
	StateSilenced
	StateChanneling
	StateCasting
	StateRooted
)

// Has reports whether all flags of o are set in s.
func (s State) Has(o State) bool {
	return s&o == o && o != 0
}

// ParseState converts a content string to a State flag.
func ParseState(s string) (State, bool) {
	switch strings.ToLower(s) {
	case "stunned", "stun":
		return StateStunned, true
	case "silenced", "silence":
		return StateSilenced, true
	case "channeling":
		return StateChanneling, true
	case "casting":
		return StateCasting, true
	case "rooted", "root":
		return StateRooted, true
	default:
		return 0, false
	}
}

// Stat names a numeric attribute that modifiers can change.
type Stat string

const (
	StatAttack       Stat = "attack"
	StatDefense      Stat = "defense"
	StatHealingPower Stat = "healingPower"
	StatMaxHealth    Stat = "maxHealth"
	StatMoveSpeed    Stat = "moveSpeed"
)
