package session

import (
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// Resolve maps a citation ordinal to its source. It never errors: an ordinal
// whose source has not been registered yet resolves to nil, which renders as
// a neutral, non-linking marker until a later source_found fills the gap and
// the text is re-parsed.
func Resolve(ordinal int, reg *Registry) *types.Source {
	if reg == nil {
		return nil
	}
	return reg.Get(ordinal)
}
