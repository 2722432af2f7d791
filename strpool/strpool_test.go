package strpool

import "testing"

func TestDupRelease(t *testing.T) {
	s := New("hello")
	if s.Refs() != 1 {
		t.Fatalf("want refcount 1, got %d", s.Refs())
	}
	Dup(s)
	if s.Refs() != 2 {
		t.Fatalf("want refcount 2 after dup, got %d", s.Refs())
	}
	Release(s)
	if s.Refs() != 1 {
		t.Fatalf("want refcount 1 after release, got %d", s.Refs())
	}
}

func TestConcat(t *testing.T) {
	a := New("foo")
	b := New("bar")
	got := Concat(a, b)
	if got.String() != "foobar" {
		t.Fatalf("Concat = %q, want %q", got.String(), "foobar")
	}
}

func TestMid(t *testing.T) {
	s := New("hello world")
	cases := []struct {
		pos, n int
		want   string
	}{
		{0, 5, "hello"},
		{6, 5, "world"},
		{6, 100, "world"},
		{-1, 5, ""},
		{100, 5, ""},
		{0, 0, ""},
	}
	for _, c := range cases {
		got := Mid(s, c.pos, c.n)
		if got.String() != c.want {
			t.Errorf("Mid(%q, %d, %d) = %q, want %q", s.String(), c.pos, c.n, got.String(), c.want)
		}
	}
}

func TestTrim(t *testing.T) {
	s := New("  hi there  \t\n")
	got := Trim(s)
	if got.String() != "hi there" {
		t.Fatalf("Trim = %q, want %q", got.String(), "hi there")
	}
}
