// Package extract pulls reservation fields out of free-form chat messages.
//
// Every field is resolved by an ordered list of rules. A rule pairs a
// pattern with a normalizer; rules are tried in order, and within a rule
// matches are tried left to right. The first match the normalizer accepts
// wins. Nothing here fails: a field that no rule resolves is left empty.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sportbar2312/reservation-bot/internal/venue"
)

// MaxPartySize is the largest head count the extractor will report.
const MaxPartySize = 12

// Config is the static input the extractor matches against.
type Config struct {
	Zones       []venue.Zone
	TimeSlots   []string
	TableRanges []venue.TableRange
}

// ConfigFromCatalog builds the extractor configuration from a venue catalog.
func ConfigFromCatalog(c *venue.Catalog) Config {
	if c == nil {
		return Config{}
	}
	return Config{Zones: c.Zones, TimeSlots: c.TimeSlots, TableRanges: c.TableRanges}
}

// Fields holds best-effort guesses. Pointers are nil and strings empty when
// the corresponding field was not found.
type Fields struct {
	People *int
	Zone   *venue.Zone
	Date   *time.Time
	Time   string
	Table  string
}

// Extract runs every field extractor over text. now anchors relative dates.
func Extract(text string, cfg Config, now time.Time) Fields {
	var f Fields
	if n, ok := ExtractPeople(text); ok {
		f.People = &n
	}
	if z, ok := ExtractZone(text, cfg.Zones, cfg.TableRanges); ok {
		f.Zone = &z
	}
	if d, ok := ExtractDate(text, now); ok {
		f.Date = &d
	}
	f.Time, _ = ExtractTime(text)
	f.Table, _ = ExtractTable(text)
	return f
}

type rule[T any] struct {
	pattern   *regexp.Regexp
	normalize func(text string, loc []int, now time.Time) (T, bool)
}

func firstMatch[T any](rules []rule[T], text string, now time.Time) (T, bool) {
	text = strings.ToLower(text)
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			if v, ok := r.normalize(text, loc, now); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

const hourUnits = `(?:horas|hora|hrs|hr|hs|h)`

var (
	hourUnitPrefixRE = regexp.MustCompile(`^\s*` + hourUnits + `\b`)
	tableRE          = regexp.MustCompile(`\b(?:mesa|table)\s+#?\s*(\d{1,3})\b`)
)

var peopleRules = []rule[int]{
	{
		pattern:   regexp.MustCompile(`\b(\d{1,2})\s*(?:personas|persona|people|persons|person|pax|comensales)\b`),
		normalize: partySize,
	},
	{
		pattern:   regexp.MustCompile(`\b(?:para|somos|seremos|we are|we're|for)\s+(\d{1,2})\b`),
		normalize: partySize,
	},
}

// ExtractPeople finds a head count in [1, MaxPartySize] next to a
// people/for/we-are keyword.
func ExtractPeople(text string) (int, bool) {
	return firstMatch(peopleRules, text, time.Time{})
}

func partySize(text string, loc []int, _ time.Time) (int, bool) {
	start, end := loc[2], loc[3]
	if precededBy(text, start, ":./") || followedBy(text, end, ":./") {
		return 0, false
	}
	if hourUnitPrefixRE.MatchString(text[end:]) {
		return 0, false
	}
	n, err := strconv.Atoi(text[start:end])
	if err != nil || n < 1 || n > MaxPartySize {
		return 0, false
	}
	return n, true
}

// ExtractZone returns the first zone, in configuration order, whose keyword
// appears in text. When no keyword matches, a "mesa N" mention is mapped
// through the table ranges.
func ExtractZone(text string, zones []venue.Zone, ranges []venue.TableRange) (venue.Zone, bool) {
	lower := strings.ToLower(text)
	for _, z := range zones {
		for _, kw := range z.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return z, true
			}
		}
	}

	label, ok := ExtractTable(text)
	if !ok {
		return venue.Zone{}, false
	}
	n, _ := strconv.Atoi(label)
	for _, r := range ranges {
		if n < r.From || n > r.To {
			continue
		}
		for _, z := range zones {
			if z.ID == r.ZoneID {
				return z, true
			}
		}
	}
	return venue.Zone{}, false
}

var dateRules = []rule[time.Time]{
	{
		pattern:   regexp.MustCompile(`\bpasado\s+ma(?:ñ|n)ana\b`),
		normalize: relativeDay(2),
	},
	{
		pattern:   regexp.MustCompile(`\b(?:hoy|today)\b`),
		normalize: relativeDay(0),
	},
	{
		pattern: regexp.MustCompile(`\b(?:ma(?:ñ|n)ana|tomorrow)\b`),
		normalize: func(text string, loc []int, now time.Time) (time.Time, bool) {
			// "de la mañana" is a time of day, not tomorrow.
			if words := strings.Fields(text[:loc[0]]); len(words) > 0 && words[len(words)-1] == "la" {
				return time.Time{}, false
			}
			return relativeDay(1)(text, loc, now)
		},
	},
	{
		pattern:   regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`),
		normalize: numericDate,
	},
}

// ExtractDate resolves "hoy"/"today" and "mañana"/"tomorrow" relative to
// now, then falls back to D/M or D/M/Y. Two-digit years land in the 2000s.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	return firstMatch(dateRules, text, now)
}

func relativeDay(offset int) func(string, []int, time.Time) (time.Time, bool) {
	return func(_ string, _ []int, now time.Time) (time.Time, bool) {
		y, m, d := now.Date()
		return time.Date(y, m, d+offset, 0, 0, 0, 0, now.Location()), true
	}
}

func numericDate(text string, loc []int, now time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(text[loc[2]:loc[3]])
	month, _ := strconv.Atoi(text[loc[4]:loc[5]])
	year := now.Year()
	if loc[6] >= 0 {
		year, _ = strconv.Atoi(text[loc[6]:loc[7]])
		if year < 100 {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

var timeRules = []rule[string]{
	{
		pattern: regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s*` + hourUnits + `)?`),
		normalize: func(text string, loc []int, _ time.Time) (string, bool) {
			hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
			minute, _ := strconv.Atoi(text[loc[4]:loc[5]])
			return clock(hour, minute)
		},
	},
	{
		pattern: regexp.MustCompile(`\b(\d{1,2})\s*` + hourUnits + `\b`),
		normalize: func(text string, loc []int, _ time.Time) (string, bool) {
			start, end := loc[2], loc[3]
			if precededBy(text, start, ":.") || followedBy(text, end, ":.") {
				return "", false
			}
			hour, _ := strconv.Atoi(text[start:end])
			return clock(hour, 0)
		},
	},
}

// ExtractTime finds an H:MM time, or a bare hour followed by an hour unit
// ("20 hs"), and returns it zero-padded as HH:MM.
func ExtractTime(text string) (string, bool) {
	return firstMatch(timeRules, text, time.Time{})
}

func clock(hour, minute int) (string, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// ExtractTable returns the number from a "mesa N" / "table N" mention.
func ExtractTable(text string) (string, bool) {
	m := tableRE.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}

// LooksLikeName reports whether text could be a bare first name: shorter
// than 20 characters, a single token, and not purely numeric. Short zone
// keywords ("vip", "barra") also pass, so callers must not treat a true
// result as proof.
func LooksLikeName(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) >= 20 || strings.IndexFunc(text, unicode.IsSpace) >= 0 {
		return false
	}
	return strings.IndexFunc(text, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}

func precededBy(text string, idx int, chars string) bool {
	return idx > 0 && strings.IndexByte(chars, text[idx-1]) >= 0
}

func followedBy(text string, idx int, chars string) bool {
	return idx < len(text) && strings.IndexByte(chars, text[idx]) >= 0
}
