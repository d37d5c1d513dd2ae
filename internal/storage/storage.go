// Package storage defines the persistence interface for catalog tables.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/osusume/internal/models"
)

// SchemaVersion is the catalog table version written by this build.
const SchemaVersion = 1

// ErrNoSchema is returned when a database does not contain a catalog table.
var ErrNoSchema = errors.New("database has no catalog schema")

// CatalogStore reads and writes an ordered item table.
type CatalogStore interface {
	// ReadItems returns all items in catalog order.
	ReadItems(ctx context.Context) ([]models.Item, error)
	// WriteItems replaces the table contents with items, preserving order.
	WriteItems(ctx context.Context, items []models.Item) error

	SchemaVersion(ctx context.Context) (int, error)
	CountItems(ctx context.Context) (int64, error)

	Close() error
}
