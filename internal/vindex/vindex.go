// Package vindex is an inverted index over leaf descriptors, used to
// prune search candidates. Posting lists are roaring bitmaps of leaf
// ordinals keyed by descriptor facet (object type, id, level word).
// Candidates returns a superset: level facets ignore position, so callers
// must still verify each candidate against the query.
package vindex

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/resdb/descriptor"
	"github.com/hupe1980/resdb/dict"
)

type facetKind uint8

const (
	facetType facetKind = iota + 1
	facetLevel
	facetBase
	facetUser
)

type facet struct {
	kind facetKind
	word dict.Word // type and level facets
	id   int       // id facets
}

// Index maps descriptor facets to leaf ordinals. Ordinals are assigned by
// the caller in registration order, so ascending bitmap iteration yields
// leaves in insertion order.
type Index struct {
	postings map[facet]*roaring.Bitmap
	all      *roaring.Bitmap
}

// New creates an empty index.
func New() *Index {
	return &Index{
		postings: make(map[facet]*roaring.Bitmap),
		all:      roaring.New(),
	}
}

func facetsOf(d descriptor.Descriptor) []facet {
	facets := make([]facet, 0, 3+len(d.Levels))
	facets = append(facets, facet{kind: facetType, word: d.ObjectType})
	if d.BaseID != descriptor.Wildcard {
		facets = append(facets, facet{kind: facetBase, id: d.BaseID})
	}
	if d.UserID != descriptor.Wildcard {
		facets = append(facets, facet{kind: facetUser, id: d.UserID})
	}
	for _, w := range d.Levels {
		facets = append(facets, facet{kind: facetLevel, word: w})
	}
	return facets
}

// Add registers a leaf under every facet of its descriptor.
func (ix *Index) Add(ord uint32, d descriptor.Descriptor) {
	ix.all.Add(ord)
	for _, f := range facetsOf(d) {
		bm, ok := ix.postings[f]
		if !ok {
			bm = roaring.New()
			ix.postings[f] = bm
		}
		bm.Add(ord)
	}
}

// Remove unregisters a leaf. The descriptor must be the one it was added
// with; empty posting lists are dropped.
func (ix *Index) Remove(ord uint32, d descriptor.Descriptor) {
	ix.all.Remove(ord)
	for _, f := range facetsOf(d) {
		bm, ok := ix.postings[f]
		if !ok {
			continue
		}
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(ix.postings, f)
		}
	}
}

// Candidates returns the ordinals that may match q, in ascending order.
// The object type always constrains; ids constrain unless wildcard; each
// query level word must appear somewhere in the leaf's levels. The result
// is owned by the caller.
func (ix *Index) Candidates(q descriptor.Descriptor) *roaring.Bitmap {
	result := ix.all.Clone()

	intersect := func(f facet) {
		if result.IsEmpty() {
			return
		}
		bm, ok := ix.postings[f]
		if !ok {
			result.Clear()
			return
		}
		result.And(bm)
	}

	intersect(facet{kind: facetType, word: q.ObjectType})
	if q.BaseID != descriptor.Wildcard {
		intersect(facet{kind: facetBase, id: q.BaseID})
	}
	if q.UserID != descriptor.Wildcard {
		intersect(facet{kind: facetUser, id: q.UserID})
	}
	for _, w := range q.Levels {
		intersect(facet{kind: facetLevel, word: w})
	}
	return result
}

// Len returns the number of registered leaves.
func (ix *Index) Len() int {
	return int(ix.all.GetCardinality())
}
