package analytics

import goerrors "github.com/goliatone/go-errors"

var (
	// ErrRangeTooLarge is returned when a query window exceeds MaxRangeDays.
	ErrRangeTooLarge = goerrors.New("date range exceeds 90 days", goerrors.CategoryValidation)

	// ErrInvalidRange is returned for empty, inverted or overlapping windows.
	ErrInvalidRange = goerrors.New("invalid date range", goerrors.CategoryValidation)

	// ErrUnknownMetric is returned for a time series metric with no event type.
	ErrUnknownMetric = goerrors.New("unknown analytics metric", goerrors.CategoryValidation)

	// ErrInvalidPayload is returned when event data does not match its event type.
	ErrInvalidPayload = goerrors.New("invalid event payload", goerrors.CategoryValidation)

	// ErrMissingStore is returned when a query has no store ID.
	ErrMissingStore = goerrors.New("store id is required", goerrors.CategoryBadInput)

	// ErrMissingProduct is returned when a product rollup has no product ID.
	ErrMissingProduct = goerrors.New("product id is required", goerrors.CategoryBadInput)
)
