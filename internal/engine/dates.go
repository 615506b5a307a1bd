package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a half-open calendar interval [Start, End). Every resolver
// branch returns this shape, including "last month": filters render the
// range as col >= Start AND col < End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the length of the interval in whole days.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	reFirstWeek = regexp.MustCompile(`first week of\s+([a-z]+)\s+(\d{4})`)
	reBetween   = regexp.MustCompile(`between\s+([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?\s+and\s+(?:([a-z]+)\s+)?(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	reMonthYear = regexp.MustCompile(`\b([a-z]+)\s+(\d{4})\b`)
	reLastMonth = regexp.MustCompile(`\blast month\b`)
)

// dateRule is one branch of the resolver cascade. Rules are evaluated in
// declaration order and the first match wins.
type dateRule struct {
	name    string
	resolve func(text string, now time.Time) (DateRange, bool)
}

var dateRules = []dateRule{
	{"first-week-of-month", resolveFirstWeek},
	{"between-days", resolveBetween},
	{"month-year", resolveMonthYear},
	{"last-month", resolveLastMonth},
}

// ResolveDateRange converts a natural-language temporal phrase inside text
// into a concrete half-open date interval. The boolean is false when no
// rule matches.
func ResolveDateRange(text string, now time.Time) (DateRange, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range dateRules {
		if r, ok := rule.resolve(lowered, now); ok {
			return r, true
		}
	}
	return DateRange{}, false
}

func resolveFirstWeek(text string, _ time.Time) (DateRange, bool) {
	m := reFirstWeek.FindStringSubmatch(text)
	if m == nil {
		return DateRange{}, false
	}
	month, ok := months[m[1]]
	if !ok {
		return DateRange{}, false
	}
	year, _ := strconv.Atoi(m[2])
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 0, 7)}, true
}

// resolveBetween handles "between June 3 and June 10, 2025". The phrase
// names an inclusive end day, so one day is added to keep the interval
// half-open.
func resolveBetween(text string, _ time.Time) (DateRange, bool) {
	m := reBetween.FindStringSubmatch(text)
	if m == nil {
		return DateRange{}, false
	}
	startMonth, ok := months[m[1]]
	if !ok {
		return DateRange{}, false
	}
	endMonth := startMonth
	if m[3] != "" {
		endMonth, ok = months[m[3]]
		if !ok {
			return DateRange{}, false
		}
	}
	startDay, _ := strconv.Atoi(m[2])
	endDay, _ := strconv.Atoi(m[4])
	year, _ := strconv.Atoi(m[5])

	start := time.Date(year, startMonth, startDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, endMonth, endDay, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	if !end.After(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

func resolveMonthYear(text string, _ time.Time) (DateRange, bool) {
	for _, m := range reMonthYear.FindAllStringSubmatch(text, -1) {
		month, ok := months[m[1]]
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[2])
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: start, End: start.AddDate(0, 1, 0)}, true
	}
	return DateRange{}, false
}

func resolveLastMonth(text string, now time.Time) (DateRange, bool) {
	if !reLastMonth.MatchString(text) {
		return DateRange{}, false
	}
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: thisMonth.AddDate(0, -1, 0), End: thisMonth}, true
}

// resolveLastDay finds a "last day of <month> <year>" phrase and returns
// the interval covering just that final calendar day.
func resolveLastDay(text string) (DateRange, bool) {
	lowered := strings.ToLower(text)
	if !strings.Contains(lowered, "last day") {
		return DateRange{}, false
	}
	r, ok := resolveMonthYear(lowered, time.Time{})
	if !ok {
		return DateRange{}, false
	}
	return DateRange{Start: r.End.AddDate(0, 0, -1), End: r.End}, true
}
