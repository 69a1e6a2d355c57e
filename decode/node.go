// Package decode turns raw transaction calldata into a typed value tree that
// the rest of the engine can address by path.
package decode

import (
	"fmt"
	"math/big"
	"strings"
)

type Kind int

const (
	Scalar Kind = iota
	Bytes
	Seq
	Tuple
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Bytes:
		return "bytes"
	case Seq:
		return "seq"
	case Tuple:
		return "tuple"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is one value in a decoded calldata tree. Exactly one shape is
// populated depending on Kind:
//   - Scalar: Str always, Big additionally for numeric values
//   - Bytes:  Raw
//   - Seq:    Elems
//   - Tuple:  Keys and Elems, index-aligned
type Node struct {
	Kind  Kind
	Str   string
	Big   *big.Int
	Raw   []byte
	Keys  []string
	Elems []*Node
}

func NewScalar(s string) *Node { return &Node{Kind: Scalar, Str: s} }

func NewNumber(v *big.Int) *Node {
	return &Node{Kind: Scalar, Str: v.String(), Big: new(big.Int).Set(v)}
}

func NewBytes(raw []byte) *Node {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Node{Kind: Bytes, Raw: cp}
}

func NewSeq(elems []*Node) *Node { return &Node{Kind: Seq, Elems: elems} }

func NewTuple(keys []string, elems []*Node) *Node {
	return &Node{Kind: Tuple, Keys: keys, Elems: elems}
}

// Field looks up a tuple member by name.
func (n *Node) Field(name string) (*Node, bool) {
	if n.Kind != Tuple {
		return nil, false
	}
	for i, k := range n.Keys {
		if k == name {
			return n.Elems[i], true
		}
	}
	return nil, false
}

// Len is the element count of a Seq, the byte count of a Bytes node, and
// zero otherwise.
func (n *Node) Len() int {
	switch n.Kind {
	case Seq:
		return len(n.Elems)
	case Bytes:
		return len(n.Raw)
	}
	return 0
}

// Display renders the node as a single line for reports. Composite nodes
// render recursively.
func (n *Node) Display() string {
	switch n.Kind {
	case Scalar:
		return n.Str
	case Bytes:
		return fmt.Sprintf("0x%x", n.Raw)
	case Seq:
		parts := make([]string, len(n.Elems))
		for i, e := range n.Elems {
			parts[i] = e.Display()
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	case Tuple:
		parts := make([]string, len(n.Elems))
		for i, e := range n.Elems {
			parts[i] = fmt.Sprintf("%s: %s", n.Keys[i], e.Display())
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	}
	return ""
}
