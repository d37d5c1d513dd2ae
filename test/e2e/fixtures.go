package e2e

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

// SupportedTableExtensions are the catalog table formats the loader reads.
var SupportedTableExtensions = []string{".json", ".csv", ".xlsx", ".db"}

// WriteCatalog writes items to dir/movies<ext> and returns the path.
func WriteCatalog(ctx context.Context, dir, ext string, items []models.Item) (string, error) {
	path := filepath.Join(dir, "movies"+ext)
	switch ext {
	case ".json", ".db":
		return path, catalog.WriteTable(ctx, path, items)
	case ".csv":
		return path, writeCSV(path, items)
	case ".xlsx":
		return path, writeXLSX(path, items)
	default:
		return "", fmt.Errorf("unsupported extension: %s", ext)
	}
}

// tableRecords flattens items into a header row and one record per item.
func tableRecords(items []models.Item) [][]string {
	keys := make(map[string]bool)
	for _, it := range items {
		for k := range it.Extra {
			keys[k] = true
		}
	}
	extra := make([]string, 0, len(keys))
	for k := range keys {
		extra = append(extra, k)
	}
	sort.Strings(extra)

	records := [][]string{append([]string{"movie_id", "title"}, extra...)}
	for _, it := range items {
		rec := []string{strconv.Itoa(it.ID), it.Title}
		for _, k := range extra {
			rec = append(rec, it.Extra[k])
		}
		records = append(records, rec)
	}
	return records
}

func writeCSV(path string, items []models.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(tableRecords(items)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(path string, items []models.Item) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, rec := range tableRecords(items) {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
