// Package e2e provides end-to-end tests over a generated movie catalog written in
// every supported table format.
package e2e

import (
	"fmt"
	"sort"

	"github.com/hyperjump/osusume/internal/models"
)

// GenreSize is the number of movies generated per genre.
const GenreSize = 10

// Genres are the clusters of the generated catalog. Movies in the same genre are
// always more similar to each other than to any movie outside it.
var Genres = []string{
	"Space Opera", "Heist", "Samurai", "Noir", "Monster",
	"Western", "Musical", "Courtroom", "Disaster", "Ghost Story",
}

// QueryTestCase is one recommendation query and the titles it must return, in order.
type QueryTestCase struct {
	Title       string
	ExpectedTop []string
	Description string
}

// Corpus is a generated catalog, its similarity matrix and the queries to run against it.
type Corpus struct {
	Items     []models.Item
	Rows      [][]float64
	TestCases []QueryTestCase
}

// Title returns the generated title of movie k in genre g.
func Title(g, k int) string {
	return fmt.Sprintf("%s %d", Genres[g], k+1)
}

// similarity is symmetric with a unit diagonal. Within a genre it decays with the
// distance between positions; across genres it stays below 0.06.
func similarity(i, j int) float64 {
	if i == j {
		return 1
	}
	gi, ki := i/GenreSize, i%GenreSize
	gj, kj := j/GenreSize, j%GenreSize
	if gi == gj {
		d := ki - kj
		if d < 0 {
			d = -d
		}
		return 0.9 - 0.01*float64(d)
	}
	return 0.05 + 0.001*float64((i+j)%10)
}

// BuildCorpus generates len(Genres)*GenreSize movies with a clustered similarity matrix.
func BuildCorpus() *Corpus {
	n := len(Genres) * GenreSize
	c := &Corpus{
		Items: make([]models.Item, n),
		Rows:  make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		g := i / GenreSize
		c.Items[i] = models.Item{
			ID:    1000 + i,
			Title: Title(g, i%GenreSize),
			Extra: map[string]string{
				"genre":    Genres[g],
				"overview": fmt.Sprintf("Entry %d of the %s collection.", i%GenreSize+1, Genres[g]),
			},
		}
		c.Rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			c.Rows[i][j] = similarity(i, j)
		}
	}
	for g := range Genres {
		for _, k := range []int{0, 4, GenreSize - 1} {
			c.TestCases = append(c.TestCases, QueryTestCase{
				Title:       Title(g, k),
				ExpectedTop: expectedTop(g, k, 5),
				Description: fmt.Sprintf("%s position %d", Genres[g], k+1),
			})
		}
	}
	return c
}

// expectedTop lists the nearest genre-mates of movie k: closest position first,
// ties broken by catalog order.
func expectedTop(g, k, limit int) []string {
	others := make([]int, 0, GenreSize-1)
	for m := 0; m < GenreSize; m++ {
		if m != k {
			others = append(others, m)
		}
	}
	dist := func(m int) int {
		if m > k {
			return m - k
		}
		return k - m
	}
	sort.SliceStable(others, func(a, b int) bool { return dist(others[a]) < dist(others[b]) })
	if len(others) > limit {
		others = others[:limit]
	}
	titles := make([]string, len(others))
	for i, m := range others {
		titles[i] = Title(g, m)
	}
	return titles
}
