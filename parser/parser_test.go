package parser

import (
	"testing"

	"ssc/expr"
)

func TestParseArithmeticPrecedence(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("1+2*3^2", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpAdd {
		t.Fatalf("root op = %v, want OpAdd", n.Op)
	}
	if n.Left.Op != expr.OpConst || n.Left.Num != 1 {
		t.Fatalf("left = %+v, want const 1", n.Left)
	}
	mul := n.Right
	if mul.Op != expr.OpMul {
		t.Fatalf("right op = %v, want OpMul", mul.Op)
	}
	if mul.Right.Op != expr.OpPow {
		t.Fatalf("mul.Right op = %v, want OpPow", mul.Right.Op)
	}
}

func TestParseUnaryBindsTighterThanPow(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("-2^2", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpPow {
		t.Fatalf("root op = %v, want OpPow (unary binds tighter than ^)", n.Op)
	}
	if n.Left.Op != expr.OpNeg {
		t.Fatalf("left op = %v, want OpNeg", n.Left.Op)
	}
}

func TestParseRefAndRange(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("A1:$B$2", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpRange {
		t.Fatalf("op = %v, want OpRange", n.Op)
	}
	if n.Range.Left.Row != 0 || n.Range.Left.Col != 0 {
		t.Fatalf("left ref = %+v, want (0,0)", n.Range.Left)
	}
	if n.Range.Right.Row != 1 || n.Range.Right.Col != 1 || !n.Range.Right.FixRow || !n.Range.Right.FixCol {
		t.Fatalf("right ref = %+v, want fixed (1,1)", n.Range.Right)
	}
}

func TestParseFunctionCall(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("sum(A1:A10,1,2)", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpCall || n.Name != "sum" {
		t.Fatalf("n = %+v, want call to sum", n)
	}
	args := expr.Args(n.Left)
	if len(args) != 3 {
		t.Fatalf("len(args) = %d, want 3", len(args))
	}
	if args[0].Op != expr.OpRange {
		t.Fatalf("args[0] op = %v, want OpRange", args[0].Op)
	}
}

func TestParseBareIdentIsName(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("total", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpName || n.Name != "total" {
		t.Fatalf("n = %+v, want name total", n)
	}
}

func TestParseTernary(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse(`A1>0 ? "pos" : "neg"`, &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpCond {
		t.Fatalf("op = %v, want OpCond", n.Op)
	}
	if n.Cond.Op != expr.OpGt {
		t.Fatalf("cond op = %v, want OpGt", n.Cond.Op)
	}
	if n.Left.Op != expr.OpSConst || n.Right.Op != expr.OpSConst {
		t.Fatalf("branches = %+v / %+v, want string consts", n.Left, n.Right)
	}
}

func TestParseFixedOperator(t *testing.T) {
	var arena expr.Arena
	n, errs := Parse("f(A1)+1", &arena)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if n.Op != expr.OpAdd || n.Left.Op != expr.OpFixed {
		t.Fatalf("n = %+v, want add over fixed ref", n)
	}
}

func TestParseMalformedReferenceErrors(t *testing.T) {
	var arena expr.Arena
	_, errs := Parse("1+", &arena)
	if len(errs) == 0 {
		t.Fatalf("expected a parse error for a truncated expression")
	}
}
