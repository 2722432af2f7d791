package main

import (
	"strings"
	"testing"

	"ssc/engine"
	"ssc/persist"
)

func TestNormalizeAddrAppliesFallback(t *testing.T) {
	if got := normalizeAddr("", ":8080"); got != ":8080" {
		t.Fatalf("normalizeAddr empty = %q, want :8080", got)
	}
}

func TestNormalizeAddrStripsLocalhost(t *testing.T) {
	if got := normalizeAddr("localhost:9000", ":8080"); got != ":9000" {
		t.Fatalf("normalizeAddr localhost:9000 = %q, want :9000", got)
	}
}

func TestNormalizeAddrPrependsColonForBarePort(t *testing.T) {
	if got := normalizeAddr("9000", ":8080"); got != ":9000" {
		t.Fatalf("normalizeAddr 9000 = %q, want :9000", got)
	}
}

func TestApplyLinesRunsEachLineInOrder(t *testing.T) {
	e := engine.New()
	abbrev := persist.NewAbbrevTable()
	input := "let A1 = 2+3\nlet A2 = A1 * 2\n"
	if err := applyLines(e, abbrev, strings.NewReader(input)); err != nil {
		t.Fatalf("applyLines: %v", err)
	}
	if got := e.Sheet.Get(0, 0).Value; got != 5 {
		t.Fatalf("A1 = %v, want 5", got)
	}
	if got := e.Sheet.Get(1, 0).Value; got != 10 {
		t.Fatalf("A2 = %v, want 10", got)
	}
}

func TestApplyLinesReportsLineNumberOnError(t *testing.T) {
	e := engine.New()
	abbrev := persist.NewAbbrevTable()
	input := "let A1 = 2+3\nbogus syntax here =\n"
	err := applyLines(e, abbrev, strings.NewReader(input))
	if err == nil {
		t.Fatalf("expected error on malformed second line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error %q does not mention line 2", err)
	}
}
