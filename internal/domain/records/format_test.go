package records

import (
	"testing"
	"time"

	"github.com/olids/explorer/internal/domain/timeline"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)
	if got := FormatDate(&ts, false); got != "07 Mar 2024" {
		t.Errorf("FormatDate() = %q", got)
	}
	if got := FormatDate(&ts, true); got != "07 Mar 2024 09:05" {
		t.Errorf("FormatDate(withTime) = %q", got)
	}
	if got := FormatDate(nil, false); got != "N/A" {
		t.Errorf("FormatDate(nil) = %q", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		row  timeline.Row
		want string
	}{
		{"numeric with unit", timeline.Row{"result_value": 5.2, "result_unit_display": "mmol/L"}, "5.2 mmol/L"},
		{"numeric preferred", timeline.Row{"result_value": 120.0, "result_text": "high"}, "120"},
		{"text fallback", timeline.Row{"result_text": "Negative"}, "Negative"},
		{"nothing", timeline.Row{"result_unit_display": "kg"}, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.row, "result_value", "result_text", "result_unit_display"); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPractitionerName(t *testing.T) {
	if got := PractitionerName("Dr", "Amara", "Okafor"); got != "Dr Amara Okafor" {
		t.Errorf("got %q", got)
	}
	if got := PractitionerName("", " Amara ", ""); got != "Amara" {
		t.Errorf("got %q", got)
	}
	if got := PractitionerName("", "", ""); got != "N/A" {
		t.Errorf("got %q", got)
	}
}

func TestContactModeLabel(t *testing.T) {
	tests := map[string]string{
		"face-to-face": "Face To Face",
		"telephone":    "Telephone",
		"":             "Not Specified",
		"  ":           "Not Specified",
	}
	for in, want := range tests {
		if got := ContactModeLabel(in); got != want {
			t.Errorf("ContactModeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDurationLabel(t *testing.T) {
	ten := int64(10)
	if got := DurationLabel(&ten); got != "10 min" {
		t.Errorf("got %q", got)
	}
	if got := DurationLabel(nil); got != "N/A" {
		t.Errorf("got %q", got)
	}
}

func TestFormatDays(t *testing.T) {
	if formatDays(1) != "1 day" || formatDays(28) != "28 days" {
		t.Errorf("unexpected day labels %q %q", formatDays(1), formatDays(28))
	}
}
