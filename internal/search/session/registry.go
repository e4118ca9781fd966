package session

import (
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// Registry is the ordered, deduplicated source collection of one turn.
//
// Ordinals are recomputed from registry contents rather than counted up: web
// sources take 1..W in arrival order, document sources continue from W+1 in
// arrival order. A document that arrives before a later web source therefore
// shifts up when that web source is inserted; ordinal is registry order, not
// citation order.
type Registry struct {
	entries []*types.Source // arrival order, both kinds interleaved
	index   map[string]int  // identity key -> position in entries
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Insert adds a source and returns its ordinal. When the identity key is
// already present the existing entry keeps its position and the non-identity
// fields (title, domain, snippet, score) are refreshed from the new payload;
// no duplicate entry is created.
func (r *Registry) Insert(src *types.Source) int {
	if pos, ok := r.index[src.Key()]; ok {
		existing := r.entries[pos]
		if src.Title != "" {
			existing.Title = src.Title
		}
		if src.Domain != "" {
			existing.Domain = src.Domain
		}
		if src.Snippet != "" {
			existing.Snippet = src.Snippet
		}
		if src.Score != 0 {
			existing.Score = src.Score
		}
		return r.ordinalAt(pos)
	}

	r.entries = append(r.entries, src.Clone())
	r.index[src.Key()] = len(r.entries) - 1
	return r.ordinalAt(len(r.entries) - 1)
}

// Get returns the source assigned the given 1-based ordinal, or nil when no
// such source has been registered yet.
func (r *Registry) Get(ordinal int) *types.Source {
	if ordinal < 1 || ordinal > len(r.entries) {
		return nil
	}

	web, docs := r.split()
	if ordinal <= len(web) {
		return web[ordinal-1]
	}
	return docs[ordinal-len(web)-1]
}

// All returns every source in ordinal order: web sources first, then
// documents, each block in arrival order.
func (r *Registry) All() []*types.Source {
	web, docs := r.split()
	return append(web, docs...)
}

// Len reports the number of distinct sources.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Clone returns a deep copy, so reduced sessions never share registry state.
func (r *Registry) Clone() *Registry {
	dup := &Registry{
		entries: make([]*types.Source, len(r.entries)),
		index:   make(map[string]int, len(r.index)),
	}
	for i, src := range r.entries {
		dup.entries[i] = src.Clone()
	}
	for k, v := range r.index {
		dup.index[k] = v
	}
	return dup
}

// split partitions entries into web and document sources, preserving arrival
// order within each block.
func (r *Registry) split() (web, docs []*types.Source) {
	web = make([]*types.Source, 0, len(r.entries))
	docs = make([]*types.Source, 0)
	for _, src := range r.entries {
		if src.Kind == types.SourceKindWeb {
			web = append(web, src)
		} else {
			docs = append(docs, src)
		}
	}
	return web, docs
}

// ordinalAt computes the ordinal of the entry at the given arrival position.
func (r *Registry) ordinalAt(pos int) int {
	target := r.entries[pos]

	webBefore := 0
	docsBefore := 0
	webTotal := 0
	for i, src := range r.entries {
		if src.Kind == types.SourceKindWeb {
			webTotal++
			if i < pos {
				webBefore++
			}
		} else if i < pos {
			docsBefore++
		}
	}

	if target.Kind == types.SourceKindWeb {
		return webBefore + 1
	}
	return webTotal + docsBefore + 1
}
