package watermark

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the textual form written for every watermark. The day is not
// zero padded and the zone is always GMT, matching how RSS pubDate values
// are usually published.
const Layout = "Mon, 2 Jan 2006 15:04:05 GMT"

// Epoch is the watermark used when nothing has been persisted yet.
var Epoch = time.Unix(0, 0).UTC()

// bodyLayouts cover the date and time part; the zone is handled by
// parseZone. "2" accepts both padded and unpadded days.
var bodyLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
}

// RFC 822 zone names. Any other abbreviation is rejected rather than read
// as UTC.
var zoneOffsets = map[string]int{
	"GMT": 0, "UT": 0, "UTC": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads an RFC 1123 style timestamp. The zone must be a numeric
// offset or one of the RFC 822 names, and a leading day of week must match
// the date.
func Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	idx := strings.LastIndexByte(text, ' ')
	if idx < 0 {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: missing zone", text)
	}
	body, zone := strings.TrimSpace(text[:idx]), text[idx+1:]

	loc, err := parseZone(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", text, err)
	}

	var firstErr error
	for _, layout := range bodyLayouts {
		t, err := time.ParseInLocation(layout, body, loc)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if day, _, found := strings.Cut(body, ","); found && day != t.Weekday().String()[:3] {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q: %s does not match the date (%s)",
				text, day, t.Weekday())
		}
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", text, firstErr)
}

func parseZone(zone string) (*time.Location, error) {
	if hours, ok := zoneOffsets[zone]; ok {
		return time.FixedZone(zone, hours*3600), nil
	}

	if len(zone) != 5 || (zone[0] != '+' && zone[0] != '-') {
		return nil, fmt.Errorf("unsupported time zone %q", zone)
	}
	for _, c := range zone[1:] {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid zone offset %q", zone)
		}
	}
	hh, _ := strconv.Atoi(zone[1:3])
	mm, _ := strconv.Atoi(zone[3:5])
	if hh > 23 || mm > 59 {
		return nil, fmt.Errorf("invalid zone offset %q", zone)
	}

	offset := hh*3600 + mm*60
	if zone[0] == '-' {
		offset = -offset
	}
	return time.FixedZone("", offset), nil
}

// ParseOrEpoch resolves a stored watermark. Missing or unparseable values
// resolve to Epoch; the parse error is still returned so callers can log it.
func ParseOrEpoch(text string, ok bool) (time.Time, error) {
	if !ok {
		return Epoch, nil
	}

	t, err := Parse(text)
	if err != nil {
		return Epoch, err
	}
	if t.Before(Epoch) {
		return Epoch, nil
	}
	return t, nil
}

// Max returns the later of two instants.
func Max(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
