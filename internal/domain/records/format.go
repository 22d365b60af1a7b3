package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/olids/explorer/internal/domain/timeline"
)

const (
	notAvailable   = "N/A"
	notSpecified   = "Not Specified"
	dateLayout     = "02 Jan 2006"
	dateTimeLayout = "02 Jan 2006 15:04"
)

// FormatDate renders t for display, "N/A" when nil.
func FormatDate(t *time.Time, withTime bool) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	if withTime {
		return t.Format(dateTimeLayout)
	}
	return t.Format(dateLayout)
}

// FormatValue renders a measured value with its unit. Numeric results are
// preferred over free text.
func FormatValue(row timeline.Row, valueCol, textCol, unitCol string) string {
	var value string
	if v, ok := row.Float64(valueCol); ok {
		value = strconv.FormatFloat(v, 'f', -1, 64)
	} else {
		value = strings.TrimSpace(row.String(textCol))
	}
	if value == "" {
		return notAvailable
	}
	if unit := strings.TrimSpace(row.String(unitCol)); unit != "" {
		return value + " " + unit
	}
	return value
}

// PractitionerName joins title, first and last name, "N/A" when all are
// blank.
func PractitionerName(title, first, last string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{title, first, last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return notAvailable
	}
	return strings.Join(parts, " ")
}

// ContactModeLabel turns codes such as "face-to-face" into "Face To Face".
func ContactModeLabel(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "-", " "))
	if raw == "" {
		return notSpecified
	}
	return cases.Title(language.English).String(raw)
}

// DurationLabel renders a planned duration in minutes.
func DurationLabel(minutes *int64) string {
	if minutes == nil {
		return notAvailable
	}
	return fmt.Sprintf("%d min", *minutes)
}

func formatDays(d int64) string {
	if d == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", d)
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notAvailable
	}
	return s
}
