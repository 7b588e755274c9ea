// Package dict interns the type and level names of the result hierarchy.
//
// Every group of the same kind shares one canonical string instance, so
// comparing two Words is a single handle comparison instead of a string
// compare. Interned handles stay valid for the process lifetime; there is
// no removal.
package dict

import "unique"

// Word is the canonical handle for an interned name.
// The zero Word means "no word" and never compares equal to an interned one.
type Word struct {
	h unique.Handle[string]
}

// Intern returns the canonical Word for s. Equal strings always yield equal
// Words, making Word comparison an O(1) identity check.
func Intern(s string) Word {
	return Word{h: unique.Make(s)}
}

// InternAll interns every name in names, preserving order.
func InternAll(names []string) []Word {
	if len(names) == 0 {
		return nil
	}
	words := make([]Word, len(names))
	for i, s := range names {
		words[i] = Intern(s)
	}
	return words
}

// String returns the interned string value, or "" for the zero Word.
func (w Word) String() string {
	if w.IsZero() {
		return ""
	}
	return w.h.Value()
}

// IsZero reports whether w is the zero Word. Note that Intern("") is a valid
// interned word and is not the zero Word.
func (w Word) IsZero() bool {
	return w == Word{}
}
