// Package expr implements the tagged expression tree: opcodes, reference and
// range payloads, and an arena that recycles freed nodes through a per-arena
// free list before falling back to heap allocation.
package expr

import "ssc/strpool"

type Op uint8

const (
	OpConst    Op = iota // numeric constant: Num
	OpSConst             // string constant: Str
	OpRef                // cell reference: Ref
	OpRange              // range reference: Ref, Ref2 (source order, not normalized)
	OpName               // named-range reference, resolved against refmaps at eval time: Name
	OpNeg                // unary -Left
	OpNot                // unary !Left (boolean)
	OpFixed              // `f` operator: Left evaluated with zero row/col bias
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat // # string concatenation
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd    // & boolean and
	OpOr     // | boolean or
	OpCond   // Cond ? Left : Right  (Cond holds the condition, Left/Right the branches)
	OpSemi   // Left ; Right, evaluates both, yields Right
	OpCall   // function call: Name, Args (OpArg-chained list)
	OpArg    // left-leaning argument list cell: Left = rest of list, Right = value
	OpExternal // external command node: Left = command string expr, Right = numeric arg expr
)

// Ref is a cell reference with absolute-addressing bits.
type Ref struct {
	Row, Col       int
	FixRow, FixCol bool
}

// RangeRef is a pair of cell references in source (as-typed) order; endpoints
// are normalized to min/max only at the use site.
type RangeRef struct {
	Left, Right Ref
}

// Node is the tagged expression tree node. Only the fields relevant to Op are
// meaningful; the rest are zero. Nodes form a tree and are never shared.
type Node struct {
	Op Op

	Num   float64
	Str   *strpool.String
	Ref   Ref
	Range RangeRef

	Left, Right *Node // children; for OpCond, Left/Right are the two branches
	Cond        *Node // OpCond's condition; unused otherwise

	Name string // OpCall function name, OpExternal disabled-cache key

	// freeNext chains this node onto the arena free list when it is not in
	// use; conceptually aliases the Left-child slot the way the reference
	// implementation links freed nodes through their left-child pointer.
	freeNext *Node
}

// Arena recycles freed nodes via a free list before allocating from the heap.
// Zero value is ready to use.
type Arena struct {
	free *Node
}

func (a *Arena) newNode() *Node {
	if a.free != nil {
		n := a.free
		a.free = n.freeNext
		*n = Node{}
		return n
	}
	return &Node{}
}

// Alloc builds a generic binary/unary op node. right may be nil for unary ops.
func (a *Arena) Alloc(op Op, left, right *Node) *Node {
	n := a.newNode()
	n.Op = op
	n.Left = left
	n.Right = right
	return n
}

// AllocCond builds a ternary conditional node.
func (a *Arena) AllocCond(cond, ifTrue, ifFalse *Node) *Node {
	n := a.newNode()
	n.Op = OpCond
	n.Cond = cond
	n.Left = ifTrue
	n.Right = ifFalse
	return n
}

func (a *Arena) AllocConst(x float64) *Node {
	n := a.newNode()
	n.Op = OpConst
	n.Num = x
	return n
}

func (a *Arena) AllocSConst(s *strpool.String) *Node {
	n := a.newNode()
	n.Op = OpSConst
	n.Str = s
	return n
}

func (a *Arena) AllocName(name string) *Node {
	n := a.newNode()
	n.Op = OpName
	n.Name = name
	return n
}

func (a *Arena) AllocRef(ref Ref) *Node {
	n := a.newNode()
	n.Op = OpRef
	n.Ref = ref
	return n
}

func (a *Arena) AllocRange(rr RangeRef) *Node {
	n := a.newNode()
	n.Op = OpRange
	n.Range = rr
	return n
}

// AllocCall builds a function-call node over an already-built left-leaning
// argument list (see AllocArgs).
func (a *Arena) AllocCall(name string, args *Node) *Node {
	n := a.newNode()
	n.Op = OpCall
	n.Name = name
	n.Left = args
	return n
}

// AllocArgs builds the left-leaning argument-list chain from an ordered slice
// of argument expressions: a post-order traversal of the resulting chain
// yields the arguments in entry order.
func (a *Arena) AllocArgs(args []*Node) *Node {
	var chain *Node
	for _, arg := range args {
		n := a.newNode()
		n.Op = OpArg
		n.Left = chain
		n.Right = arg
		chain = n
	}
	return chain
}

// Args walks an OpArg chain back into an ordered slice.
func Args(chain *Node) []*Node {
	var rev []*Node
	for n := chain; n != nil; n = n.Left {
		rev = append(rev, n.Right)
	}
	out := make([]*Node, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

func (a *Arena) AllocExternal(name string, cmd, arg *Node) *Node {
	n := a.newNode()
	n.Op = OpExternal
	n.Name = name
	n.Left = cmd
	n.Right = arg
	return n
}

// Free shallowly recycles a single node (its children are not touched) by
// linking it onto the arena's free list via the left-child slot.
func (a *Arena) Free(n *Node) {
	if n == nil {
		return
	}
	if n.Op == OpExternal {
		n.Str = nil // release cached output so it can be GC'd
	}
	n.freeNext = a.free
	a.free = n
}

// Release recursively frees n's children (and, for OpCond, its condition)
// before freeing n itself.
func (a *Arena) Release(n *Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case OpCond:
		a.Release(n.Cond)
		a.Release(n.Left)
		a.Release(n.Right)
	case OpCall:
		for _, arg := range Args(n.Left) {
			a.Release(arg)
		}
		a.releaseArgChain(n.Left)
	case OpExternal:
		a.Release(n.Left)
		a.Release(n.Right)
	default:
		a.Release(n.Left)
		a.Release(n.Right)
	}
	a.Free(n)
}

func (a *Arena) releaseArgChain(chain *Node) {
	for n := chain; n != nil; {
		next := n.Left
		a.Free(n)
		n = next
	}
}

// Clone deep-copies a subtree using the given arena, not sharing any nodes
// with the source (expression trees are never shared).
func (a *Arena) Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := a.newNode()
	*out = *n
	out.freeNext = nil
	switch n.Op {
	case OpCond:
		out.Cond = a.Clone(n.Cond)
		out.Left = a.Clone(n.Left)
		out.Right = a.Clone(n.Right)
	case OpCall:
		out.Left = a.cloneArgChain(n.Left)
	default:
		out.Left = a.Clone(n.Left)
		out.Right = a.Clone(n.Right)
	}
	return out
}

func (a *Arena) cloneArgChain(chain *Node) *Node {
	args := Args(chain)
	cloned := make([]*Node, len(args))
	for i, arg := range args {
		cloned[i] = a.Clone(arg)
	}
	return a.AllocArgs(cloned)
}

// MinMax normalizes a range's endpoints to their upper-left/lower-right
// corners; call sites (not storage) are responsible for this.
func (rr RangeRef) MinMax() (minRow, minCol, maxRow, maxCol int) {
	minRow, maxRow = rr.Left.Row, rr.Right.Row
	if minRow > maxRow {
		minRow, maxRow = maxRow, minRow
	}
	minCol, maxCol = rr.Left.Col, rr.Right.Col
	if minCol > maxCol {
		minCol, maxCol = maxCol, minCol
	}
	return
}
