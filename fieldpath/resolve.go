package fieldpath

import (
	"math/big"

	"github.com/tranvictor/clearsign/decode"
)

// Resolve evaluates a parsed path against one transaction's decoded argument
// tree and envelope. It is pure: the same inputs always produce the same
// result, and every failure names its reason.
//
// Container paths read the envelope and always succeed. Calldata paths walk
// the tree segment by segment; the terminal value must be a scalar or byte
// range, a path stopping on a composite fails with Broken.
func Resolve(p *Path, tree *decode.Node, tx *decode.TxContext) (*decode.Node, *ResolveError) {
	if p.IsContainer() {
		return resolveContainer(p, tx), nil
	}

	cur := tree
	for _, seg := range p.Segments {
		var err *ResolveError
		switch seg.Kind {
		case Field:
			cur, err = stepField(p.Raw, cur, seg)
		case Index:
			cur, err = stepIndex(p.Raw, cur, seg)
		case Slice:
			cur, err = stepSlice(p.Raw, cur, seg)
		default:
			err = newErr(MalformedPath, p.Raw, "container segment inside a calldata path")
		}
		if err != nil {
			return nil, err
		}
	}

	if cur.Kind == decode.Seq || cur.Kind == decode.Tuple {
		return nil, newErr(Broken, p.Raw, "path stops on a composite %s value", cur.Kind)
	}
	return cur, nil
}

// ResolveExpr parses and resolves in one step.
func ResolveExpr(raw string, tree *decode.Node, tx *decode.TxContext) (*decode.Node, *ResolveError) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Resolve(p, tree, tx)
}

func resolveContainer(p *Path, tx *decode.TxContext) *decode.Node {
	switch p.ContainerName() {
	case "to":
		return decode.NewScalar(tx.To)
	case "from":
		return decode.NewScalar(tx.From)
	default: // value
		v := tx.Value
		if v == nil {
			v = new(big.Int)
		}
		return decode.NewNumber(v)
	}
}

func stepField(raw string, cur *decode.Node, seg Segment) (*decode.Node, *ResolveError) {
	if cur.Kind != decode.Tuple {
		return nil, newErr(Broken, raw, "cannot select %q in a %s value", seg.Name, cur.Kind)
	}
	next, ok := cur.Field(seg.Name)
	if !ok {
		return nil, newErr(Broken, raw, "no member named %q", seg.Name)
	}
	return next, nil
}

func stepIndex(raw string, cur *decode.Node, seg Segment) (*decode.Node, *ResolveError) {
	n := cur.Len()
	switch cur.Kind {
	case decode.Seq, decode.Bytes:
	default:
		return nil, newErr(Broken, raw, "cannot index a %s value", cur.Kind)
	}

	i := seg.Idx
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, newErr(OutOfBounds, raw, "index %d outside length %d", seg.Idx, n)
	}

	if cur.Kind == decode.Seq {
		return cur.Elems[i], nil
	}
	return decode.NewBytes(cur.Raw[i : i+1]), nil
}

func stepSlice(raw string, cur *decode.Node, seg Segment) (*decode.Node, *ResolveError) {
	n := cur.Len()
	switch cur.Kind {
	case decode.Seq, decode.Bytes:
	default:
		return nil, newErr(Broken, raw, "cannot slice a %s value", cur.Kind)
	}

	a := 0
	if seg.Start != nil {
		a = *seg.Start
		if a < 0 {
			a += n
		}
	}
	b := n
	if seg.End != nil {
		b = *seg.End
		if b < 0 {
			b += n
		}
	}
	if a < 0 || b > n || a > b {
		return nil, newErr(OutOfBounds, raw, "slice [%d:%d] outside length %d", a, b, n)
	}

	if cur.Kind == decode.Seq {
		return decode.NewSeq(cur.Elems[a:b]), nil
	}
	return decode.NewBytes(cur.Raw[a:b]), nil
}
