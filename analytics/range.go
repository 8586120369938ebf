package analytics

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/goliatone/go-storefront-cache/internal/format"
)

// MaxRangeDays is the widest window a query may cover.
const MaxRangeDays = 90

const maxRange = MaxRangeDays * 24 * time.Hour

// DateRange is an inclusive window [Start, End].
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange is a convenience constructor.
func NewRange(start, end time.Time) DateRange {
	return DateRange{Start: start, End: end}
}

// Duration is End - Start.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether t falls inside the inclusive window.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Validate rejects empty or inverted windows and windows longer than MaxRangeDays.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if r.Duration() > maxRange {
		return fmt.Errorf("%w: got %.1f days", ErrRangeTooLarge, r.Duration().Hours()/24)
	}
	return nil
}

// PreviousPeriod returns the window of equal length that ends immediately
// before r starts.
func PreviousPeriod(r DateRange) DateRange {
	end := r.Start.Add(-time.Nanosecond)
	return DateRange{Start: end.Add(-r.Duration()), End: end}
}

// ValidateComparison checks both windows and that previous ends before current starts.
func ValidateComparison(current, previous DateRange) error {
	if err := current.Validate(); err != nil {
		return err
	}
	if err := previous.Validate(); err != nil {
		return err
	}
	if !previous.End.Before(current.Start) {
		return fmt.Errorf("%w: comparison windows overlap", ErrInvalidRange)
	}
	return nil
}

var presetPattern = regexp.MustCompile(`^([1-9][0-9]?)d$`)

// ParseRange resolves a preset relative to now in loc. "today" spans the
// current local calendar day; "Nd" spans the last N local calendar days
// including today. Every preset ends at the last instant of the local day, so
// repeated calls during one day yield identical bounds.
func ParseRange(preset string, now time.Time, loc *time.Location) (DateRange, error) {
	today := format.StartOfDay(now, loc)
	endOfToday := today.AddDate(0, 0, 1).Add(-time.Nanosecond)

	if preset == "today" {
		return DateRange{Start: today, End: endOfToday}, nil
	}

	m := presetPattern.FindStringSubmatch(preset)
	if m == nil {
		return DateRange{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidRange, preset)
	}
	days, _ := strconv.Atoi(m[1])
	if days > MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: preset %q", ErrRangeTooLarge, preset)
	}
	return DateRange{Start: today.AddDate(0, 0, -(days - 1)), End: endOfToday}, nil
}
