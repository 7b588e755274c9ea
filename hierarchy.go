package resdb

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/resdb/descriptor"
	"github.com/hupe1980/resdb/entry"
)

// PrintHierarchy writes an indented dump of the entry forest: SOG roots
// as "Type(s)", object groups with their ids, and payload-bearing
// entries with the byte position of their block. Intended for
// diagnostics; the exact layout is not a contract.
func (ex *Extractor) PrintHierarchy(w io.Writer) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	for _, rw := range ex.rootOrder {
		printEntry(w, ex.roots[rw], 0)
	}
}

func printEntry(w io.Writer, e *entry.Entry, depth int) {
	indent := strings.Repeat("  ", depth)

	switch e.Kind() {
	case entry.KindSuperObjectGroup:
		fmt.Fprintf(w, "%s%s(s)\n", indent, e.Name())

	case entry.KindObjectGroup:
		fmt.Fprintf(w, "%s%s[%s,%s]\n", indent, e.Name(), formatID(e.BaseID()), formatID(e.UserID()))

	case entry.KindItemGroup:
		if e.HasPayload() {
			ref := e.Payload()
			fmt.Fprintf(w, "%s%s @%d+%d\n", indent, e.Name(), ref.Offset, ref.Length)
		} else {
			fmt.Fprintf(w, "%s%s\n", indent, e.Name())
		}

	case entry.KindVariableRef:
		ref := e.Payload()
		fmt.Fprintf(w, "%s%s (%s) @%d+%d\n", indent, e.Name(), e.VarType(), ref.Offset, ref.Length)
	}

	for _, c := range e.Children() {
		printEntry(w, c, depth+1)
	}
}

func formatID(id int) string {
	if id == descriptor.Wildcard {
		return "*"
	}
	return strconv.Itoa(id)
}
