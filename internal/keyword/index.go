// Package keyword provides full-text title search over the catalog.
package keyword

import "context"

// DefaultFuzziness is the edit distance used for fuzzy title matching.
const DefaultFuzziness = 2

// TitleSearcher defines title search operations.
type TitleSearcher interface {
	Search(ctx context.Context, query string, limit int, fuzzy bool) ([]TitleHit, error)
	DocCount() (uint64, error)
	Close() error
}

// TitleHit is a single title search hit. Position is the item's catalog position.
type TitleHit struct {
	Position int
	Score    float64
}
