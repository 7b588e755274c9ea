package resdb

import (
	"context"
	"time"

	"github.com/hupe1980/resdb/descriptor"
	"github.com/hupe1980/resdb/dict"
	"github.com/hupe1980/resdb/entry"
	"github.com/hupe1980/resdb/frs"
)

// Wildcard matches any base or user id in a search query.
const Wildcard = descriptor.Wildcard

// SearchQuery addresses entries by object type, instance ids, and a
// level-word path. Ids are exact unless Wildcard; the level path is a
// prefix, so a partial path matches everything nested below it and an
// empty path matches every variable under the object type.
//
// Note the zero value of BaseID and UserID is id 0, not Wildcard; use
// NewSearchQuery for the wildcard-everything starting point.
type SearchQuery struct {
	ObjectType string
	BaseID     int
	UserID     int
	Levels     []string
}

// NewSearchQuery returns a query for objectType with wildcard ids and
// the given level path.
func NewSearchQuery(objectType string, levels ...string) SearchQuery {
	return SearchQuery{
		ObjectType: objectType,
		BaseID:     Wildcard,
		UserID:     Wildcard,
		Levels:     levels,
	}
}

// descriptor interns the query into the comparable form entries are
// indexed under.
func (q SearchQuery) descriptor() descriptor.Descriptor {
	return descriptor.Descriptor{
		ObjectType: dict.Intern(q.ObjectType),
		BaseID:     q.BaseID,
		UserID:     q.UserID,
		Levels:     dict.InternAll(q.Levels),
	}
}

// Match is one search hit: the entry, its full derived descriptor, and
// the payload location for a later Materialize.
type Match struct {
	Entry      *entry.Entry
	Descriptor descriptor.Descriptor
	Payload    frs.PayloadRef
}

// Search returns every variable reference whose derived descriptor
// satisfies q, in depth-first left-to-right insertion order across all
// loaded files. The order depends only on load order, never on which
// file contributed an entry. An empty result is a valid outcome; Search
// never fails.
func (ex *Extractor) Search(q SearchQuery) []Match {
	start := time.Now()
	qd := q.descriptor()

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.closed {
		return nil
	}

	var out []Match
	it := ex.index.Candidates(qd).Iterator()
	for it.HasNext() {
		e := ex.leaves[it.Next()]
		if e == nil {
			continue
		}
		// Candidates are a superset: level facets ignore position, so
		// each one is verified against the real derived descriptor.
		d := entry.Derive(e)
		if !d.Matches(qd) {
			continue
		}
		out = append(out, Match{Entry: e, Descriptor: d, Payload: e.Payload()})
	}

	ex.metrics.RecordSearch(len(out), time.Since(start))
	ex.logger.LogSearch(context.Background(), qd.String(), len(out))
	return out
}
