package effect

import (
	"errors"
	"fmt"
)

// ErrInvalidNode is wrapped by every node construction failure.
var ErrInvalidNode = errors.New("invalid effect node")

// NodeID references a node inside its Arena.
type NodeID int32

// Node is an immutable operator plus ordered children. Nodes are shared by every cast
// of a skill; execution state lives in the runner, never here.
type Node struct {
	Op           Op
	Children     []NodeID
	CountsAsCast bool
	// Label names the node in logs.
	Label string
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Arena stores nodes. Children must be added before their parents, so trees are acyclic.
type Arena struct {
	nodes []Node
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores n and returns its id.
func (a *Arena) Add(n Node) (NodeID, error) {
	if n.Op == nil {
		return 0, fmt.Errorf("%w: %q has no operator", ErrInvalidNode, n.Label)
	}
	if err := validateOp(n.Op); err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidNode, n.Label, err)
	}
	for _, c := range n.Children {
		if c < 0 || int(c) >= len(a.nodes) {
			return 0, fmt.Errorf("%w: %q references unknown child %d", ErrInvalidNode, n.Label, c)
		}
	}
	n.Children = append([]NodeID(nil), n.Children...)
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1), nil
}

// MustAdd is like Add but panics on error. For trees built in code.
func (a *Arena) MustAdd(n Node) NodeID {
	id, err := a.Add(n)
	if err != nil {
		panic(err)
	}
	return id
}

// Node returns the node with the given id.
func (a *Arena) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil, false
	}
	return &a.nodes[id], true
}

// Len returns the number of nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Chain returns a chain over the given roots.
func (a *Arena) Chain(name string, roots ...NodeID) *Chain {
	return &Chain{Name: name, Arena: a, Roots: append([]NodeID(nil), roots...)}
}

// Chain is an immutable list of roots executed concurrently and joined.
type Chain struct {
	Name  string
	Arena *Arena
	Roots []NodeID
}

// Empty reports whether the chain has no roots.
func (c *Chain) Empty() bool { return c == nil || len(c.Roots) == 0 }

func validateOp(op Op) error {
	switch o := op.(type) {
	case Target:
		if o.Selector == nil {
			return errors.New("target without selector")
		}
	case Condition:
		if o.Predicate == nil {
			return errors.New("condition without predicate")
		}
	case Mechanic:
		if o.Action == nil {
			return errors.New("mechanic without action")
		}
	default:
		return fmt.Errorf("unknown operator %T", op)
	}
	return nil
}
