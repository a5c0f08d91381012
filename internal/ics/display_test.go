package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestFormatterLocales(t *testing.T) {
	instant := time.Date(2025, 11, 20, 11, 5, 0, 0, time.UTC)

	cases := []struct {
		locale   string
		wantTag  language.Tag
		dateTime string
		date     string
	}{
		{"vi-VN", language.Vietnamese, "18:05 20/11/2025", "20/11/2025"},
		{"en-US", language.AmericanEnglish, "11/20/25, 6:05 PM", "11/20/25"},
		{"en-GB", language.BritishEnglish, "20/11/2025, 18:05", "20/11/2025"},
		{"de-DE", language.German, "20.11.25, 18:05", "20.11.25"},
		{"not a locale!", language.Vietnamese, "18:05 20/11/2025", "20/11/2025"},
	}

	for _, tc := range cases {
		t.Run(tc.locale, func(t *testing.T) {
			f := NewFormatter(ict, tc.locale)
			assert.Equal(t, tc.wantTag, f.Locale())
			assert.Equal(t, tc.dateTime, f.DateTime(instant))
			assert.Equal(t, tc.date, f.Date(instant.In(ict)))
		})
	}
}

func TestFormatterDateKeepsCivilDate(t *testing.T) {
	// Midnight in a zone west of the display zone must not roll the date.
	west := time.FixedZone("PST", -8*60*60)
	f := NewFormatter(ict, "vi-VN")

	assert.Equal(t, "01/01/2026", f.Date(time.Date(2026, 1, 1, 0, 0, 0, 0, west)))
}

func TestLoadLocationOr(t *testing.T) {
	fallback := time.FixedZone("X", 3600)

	assert.Same(t, fallback, LoadLocationOr("", fallback))
	assert.Same(t, fallback, LoadLocationOr("Not/AZone", fallback))
	assert.Equal(t, time.UTC, LoadLocationOr("UTC", fallback))
}
