// Package catalog loads and holds the fixed item catalog and its similarity matrix.
package catalog

import (
	"fmt"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// Catalog is an immutable, ordered item list paired with an N×N similarity matrix.
// The position of an item in the list is its row and column in the matrix.
type Catalog struct {
	items   []models.Item
	byTitle map[string]int
	byID    map[int]int
	matrix  *Matrix
}

// New validates items against matrix and builds the lookup tables.
// Returns ErrSchema when an item has no title or the matrix dimension differs from len(items).
func New(items []models.Item, matrix *Matrix) (*Catalog, error) {
	if matrix == nil {
		return nil, fmt.Errorf("%w: similarity matrix is nil", ErrSchema)
	}
	if matrix.Dim() != len(items) {
		return nil, fmt.Errorf("%w: similarity matrix is %dx%d but catalog has %d items",
			ErrSchema, matrix.Dim(), matrix.Dim(), len(items))
	}
	c := &Catalog{
		items:   make([]models.Item, len(items)),
		byTitle: make(map[string]int, len(items)),
		byID:    make(map[int]int, len(items)),
		matrix:  matrix,
	}
	copy(c.items, items)
	for i, item := range c.items {
		if item.Title == "" {
			return nil, fmt.Errorf("%w: item at position %d (id %d) has an empty title", ErrSchema, i, item.ID)
		}
		// First occurrence wins for duplicate titles and ids.
		key := normalizeTitle(item.Title)
		if _, ok := c.byTitle[key]; !ok {
			c.byTitle[key] = i
		}
		if _, ok := c.byID[item.ID]; !ok {
			c.byID[item.ID] = i
		}
	}
	return c, nil
}

func normalizeTitle(title string) string {
	return strings.ToLower(title)
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Dim returns the dimension of the similarity matrix (equal to Len).
func (c *Catalog) Dim() int {
	return c.matrix.Dim()
}

// Item returns the item at position i.
func (c *Catalog) Item(i int) models.Item {
	return c.items[i]
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []models.Item {
	out := make([]models.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Titles returns all titles in catalog order.
func (c *Catalog) Titles() []string {
	out := make([]string, len(c.items))
	for i, item := range c.items {
		out[i] = item.Title
	}
	return out
}

// IndexOfTitle returns the position of the first item whose title equals title,
// ignoring case.
func (c *Catalog) IndexOfTitle(title string) (int, bool) {
	i, ok := c.byTitle[normalizeTitle(title)]
	return i, ok
}

// ItemByID returns the first item with the given id.
func (c *Catalog) ItemByID(id int) (models.Item, int, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Item{}, -1, false
	}
	return c.items[i], i, true
}

// Row returns the similarity row of item i. The slice aliases the matrix and must not be modified.
func (c *Catalog) Row(i int) []float64 {
	return c.matrix.Row(i)
}
