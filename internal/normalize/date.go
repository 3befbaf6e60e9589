package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date layouts tried in order. Non-padded layouts accept both "2/1/2026"
// and "02/01/2026". Day-first is the dominant convention in the documents
// this service handles.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-1-2",
	"2/1/06",
}

var textualDate = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+([a-záéíóúñ]+)\s+de\s+(\d{4})$`)

// Spanish and Galician month names.
var monthNames = map[string]time.Month{
	"enero":      time.January,
	"xaneiro":    time.January,
	"febrero":    time.February,
	"febreiro":   time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"maio":       time.May,
	"junio":      time.June,
	"xuño":       time.June,
	"julio":      time.July,
	"xullo":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"setembro":   time.September,
	"octubre":    time.October,
	"outubro":    time.October,
	"noviembre":  time.November,
	"novembro":   time.November,
	"diciembre":  time.December,
	"decembro":   time.December,
}

// parseDate attempts each configured layout against the whole substring;
// the first full parse wins.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if m := textualDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		month, ok := monthNames[strings.ToLower(m[2])]
		if ok {
			// time.Date normalizes overflow ("31 de febrero" becomes March 2),
			// so the components must survive a round trip.
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if t.Day() == day && t.Month() == month && t.Year() == year {
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
