package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// titleDoc is the indexed form of a catalog title.
type titleDoc struct {
	Title string `json:"title"`
}

// TitleIndex implements TitleSearcher using an in-memory Bleve index.
type TitleIndex struct {
	index bleve.Index
}

// NewTitleIndex builds an in-memory index over titles. Document ids are catalog positions.
func NewTitleIndex(titles []string) (*TitleIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "alien" does not match "aliens"
	// through a stem.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.AddDocumentMapping("title", docMapping)
	im.DefaultType = "title"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := index.NewBatch()
	for i, title := range titles {
		if err := batch.Index(strconv.Itoa(i), titleDoc{Title: title}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index title %q: %w", title, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index titles: %w", err)
	}
	return &TitleIndex{index: index}, nil
}

// Search returns up to limit title hits ordered by score, ties by catalog position.
// When fuzzy is true each query term matches within DefaultFuzziness edits.
func (t *TitleIndex) Search(ctx context.Context, query string, limit int, fuzzy bool) ([]TitleHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, DefaultFuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("title")
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]TitleHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, TitleHit{Position: pos, Score: hit.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,:;!?\"'()")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField("title")
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("title")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed titles.
func (t *TitleIndex) DocCount() (uint64, error) {
	return t.index.DocCount()
}

// Close releases the index.
func (t *TitleIndex) Close() error {
	return t.index.Close()
}
