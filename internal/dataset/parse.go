package dataset

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {},
	"None": {}, "#N/A": {}, "<NA>": {},
}

func isNA(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

func parsePlainFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumber is the lenient numeric coercion used by the normalizer. It
// accepts thousands separators and common currency marks; '.' is the decimal
// separator.
func ParseNumber(s string) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	for _, mark := range []string{"₹", "$", "€", "£", "INR", "Rs.", "Rs"} {
		raw = strings.TrimPrefix(raw, mark)
	}
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.ReplaceAll(raw, " ", "")
	if raw == "" {
		return 0, false
	}
	return parsePlainFloat(raw)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01-02-06",
	"01-02-2006",
	"1/2/2006",
	"1/2/06",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"02-Jan-06",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// ParseTime tries the known date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var compoundExts = []string{".csv.gz", ".csv.zst", ".tsv.gz", ".tsv.zst"}

// extOf returns the recognized, lower-cased extension of path, or "".
func extOf(path string) string {
	lower := strings.ToLower(path)
	for _, e := range compoundExts {
		if strings.HasSuffix(lower, e) {
			return e
		}
	}
	switch e := filepath.Ext(lower); e {
	case ".csv", ".tsv", ".xlsx":
		return e
	}
	return ""
}

// DatasetName derives a dataset name from a file path: extension stripped,
// spaces and hyphens replaced with underscores, lower-cased.
func DatasetName(path string) string {
	base := filepath.Base(path)
	if e := extOf(base); e != "" {
		base = base[:len(base)-len(e)]
	}
	return normalizeName(base)
}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}
