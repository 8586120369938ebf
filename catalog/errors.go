package catalog

import goerrors "github.com/goliatone/go-errors"

// ErrForeignProduct is returned when a reorder names a product of another store.
var ErrForeignProduct = goerrors.New("product belongs to another store", goerrors.CategoryBadInput)
