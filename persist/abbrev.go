package persist

import "sort"

// Entry is one abbreviation table row: Name expands to Text.
type Entry struct {
	Name, Text string
}

// AbbrevTable is the sorted abbreviation list consulted while tokenizing a
// loaded persistence file, matching abbrev.c's add/delete/expand behavior:
// longest-prefix match, case-sensitive, the table kept sorted by name so
// Add and Delete can binary-search; Expand scans every entry.
type AbbrevTable struct {
	entries []Entry
}

// NewAbbrevTable returns an empty table.
func NewAbbrevTable() *AbbrevTable { return &AbbrevTable{} }

// Add inserts or replaces name's expansion, keeping the table sorted.
func (t *AbbrevTable) Add(name, text string) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Name >= name })
	if i < len(t.entries) && t.entries[i].Name == name {
		t.entries[i].Text = text
		return
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = Entry{Name: name, Text: text}
}

// Delete removes name's entry, reporting whether it existed.
func (t *AbbrevTable) Delete(name string) bool {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Name >= name })
	if i >= len(t.entries) || t.entries[i].Name != name {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// List returns the table in sorted order.
func (t *AbbrevTable) List() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Expand finds the longest abbreviation name that is a prefix of word and
// returns its text, or word unchanged if none matches.
func (t *AbbrevTable) Expand(word string) string {
	best := ""
	for _, e := range t.entries {
		if len(e.Name) <= len(best) {
			continue
		}
		if len(e.Name) <= len(word) && word[:len(e.Name)] == e.Name {
			best = e.Name
		}
	}
	if best == "" {
		return word
	}
	for _, e := range t.entries {
		if e.Name == best {
			return e.Text + word[len(best):]
		}
	}
	return word
}
