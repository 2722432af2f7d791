// Package strpool implements refcounted immutable byte strings shared between
// cells, labels, and expression string constants.
package strpool

import "sync/atomic"

// String is an immutable, refcounted byte string. The zero value is not
// valid; strings are always created through New.
type String struct {
	data []byte
	refs int32
}

// New allocates a String with refcount 1.
func New(s string) *String {
	return &String{data: []byte(s), refs: 1}
}

// Dup increments the refcount and returns s, so callers can write
//
//	cell.Label = strpool.Dup(other.Label)
func Dup(s *String) *String {
	if s == nil {
		return nil
	}
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release decrements the refcount. At zero the backing storage is dropped;
// subsequent use of s is a bug in the caller, matching the reference
// implementation's free-on-zero contract (Go's GC reclaims the memory once
// nothing else retains the pointer).
func Release(s *String) {
	if s == nil {
		return
	}
	if atomic.AddInt32(&s.refs, -1) <= 0 {
		s.data = nil
	}
}

// Refs reports the current refcount, chiefly for tests.
func (s *String) Refs() int32 {
	if s == nil {
		return 0
	}
	return atomic.LoadInt32(&s.refs)
}

func (s *String) String() string {
	if s == nil {
		return ""
	}
	return string(s.data)
}

func (s *String) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

func (s *String) Equal(other *String) bool {
	if s == nil || other == nil {
		return s == other
	}
	return string(s.data) == string(other.data)
}

// Concat returns a new String (refcount 1) holding a#b in that order.
func Concat(a, b *String) *String {
	out := make([]byte, 0, a.Len()+b.Len())
	if a != nil {
		out = append(out, a.data...)
	}
	if b != nil {
		out = append(out, b.data...)
	}
	return &String{data: out, refs: 1}
}

// Mid returns the substring [pos, pos+n) of s as a new String. pos<0 or
// pos>=len yields an empty string; n is clipped to the available length.
func Mid(s *String, pos, n int) *String {
	if s == nil || pos < 0 || pos >= len(s.data) || n <= 0 {
		return New("")
	}
	end := pos + n
	if end > len(s.data) {
		end = len(s.data)
	}
	return New(string(s.data[pos:end]))
}

// Trim returns a new String with leading and trailing ASCII whitespace
// removed.
func Trim(s *String) *String {
	if s == nil {
		return New("")
	}
	start, end := 0, len(s.data)
	for start < end && isSpace(s.data[start]) {
		start++
	}
	for end > start && isSpace(s.data[end-1]) {
		end--
	}
	return New(string(s.data[start:end]))
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
