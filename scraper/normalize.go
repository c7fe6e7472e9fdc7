package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/mapscout/models"
)

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.]`)
	leadingNumber = regexp.MustCompile(`^(\d+(\.\d+)?|\.\d+)`)
)

// ParseNumber strips everything except digits and dots from text and parses
// the leading number, returning 0 when nothing numeric remains.
//
//	"4.5 stars" → 4.5
//	"(1,234)"   → 1234
//	"No rating" → 0
func ParseNumber(text string) float64 {
	m := leadingNumber.FindString(nonNumeric.ReplaceAllString(text, ""))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// Normalize maps a RawRecord to a Business. It returns false when the record
// has no name; that is a dropped record, not an error.
//
// Name, address, website and phone default to "". Numeric fields are present
// only when their text was read. Descriptive fields are omitted when absent or
// blank. Both timestamps are set to now.
func Normalize(raw RawRecord, now time.Time) (models.Business, bool) {
	name := strings.TrimSpace(raw.Name.Or(""))
	if name == "" {
		return models.Business{}, false
	}

	b := models.Business{
		Name:         name,
		Address:      strings.TrimSpace(raw.Address.Or("")),
		Website:      strings.TrimSpace(raw.Website.Or("")),
		Phone:        strings.TrimSpace(raw.Phone.Or("")),
		Introduction: strings.TrimSpace(raw.Introduction.Or("")),
		StoreType:    strings.TrimSpace(raw.Category.Or("")),
		OpeningHours: strings.TrimSpace(raw.Hours.Or("")),
		Status:       models.BusinessStatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if reviews := MapField(raw.ReviewCount, ParseNumber); reviews.Present() {
		b.ReviewCount = &reviews.Value
	}
	if rating := MapField(raw.Rating, ParseNumber); rating.Present() {
		b.AverageRating = &rating.Value
	}

	return b, true
}
