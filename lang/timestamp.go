package lang

import "time"

// Sentinel dates from the original implementation's tokenizer: the
// literal strings "0000-00-00" and "9999-99-99" map to the minimum and
// maximum representable timestamp instead of being parsed as calendar
// dates.
var (
	minTimestamp = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999999000, time.UTC)
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02 15:04:05.000000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp decodes one of the ISO-8601-ish timestamp forms accepted
// by the grammar, special-casing the two sentinel dates.
func parseTimestamp(text string) (time.Time, error) {
	switch text {
	case "0000-00-00":
		return minTimestamp, nil
	case "9999-99-99":
		return maxTimestamp, nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return ts, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
