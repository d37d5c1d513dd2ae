package catalog

import (
	"context"
	"fmt"
	"os"
)

// Load reads the catalog table at catalogPath and the matrix at matrixPath and validates
// them against each other. Errors wrap ErrMissingFile or ErrSchema.
func Load(ctx context.Context, catalogPath, matrixPath string) (*Catalog, error) {
	for _, p := range []string{catalogPath, matrixPath} {
		if p == "" {
			return nil, fmt.Errorf("%w: path is empty", ErrMissingFile)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, p)
		}
	}
	items, err := ReadTable(ctx, catalogPath)
	if err != nil {
		return nil, err
	}
	matrix, err := ReadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	return New(items, matrix)
}
