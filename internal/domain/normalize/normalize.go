// Package normalize turns free-text candidate profiles into canonical,
// model-ready values. Every function here is total: bad input falls back to
// a safe default and the fallback is reported on the result.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okian/jobfit/internal/domain/model"
)

// Defaults used when a field cannot be interpreted.
const (
	OtherDegree         = "Other"
	UnknownUniversity   = "Not Specified"
	DefaultTier         = 3
	tenPointMax         = 10.0
	cgpaDecimals        = 100.0
	minGraduationYear   = 1900
	maxGraduationYear   = 2200
	yearFloatTruncation = 1e-9
)

// Scale holds the CGPA scale-detection boundaries.
type Scale struct {
	// PercentMax is the upper bound of the percentage scale (exclusive lower bound is 10).
	PercentMax float64
	// FivePointMax is the top of a 5.0 scale.
	FivePointMax float64
	// FourPointMax is the top of a 4.0 scale.
	FourPointMax float64
	// FourPointMin is the exclusive lower bound of the 4.0 scale.
	FourPointMin float64
}

// DefaultScale matches percentage, 5.0 and 4.0 grading systems.
var DefaultScale = Scale{PercentMax: 100, FivePointMax: 5, FourPointMax: 4, FourPointMin: 1}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithScale overrides the CGPA scale boundaries. Invalid scales are ignored.
func WithScale(s Scale) Option {
	return func(n *Normalizer) {
		if s.PercentMax > tenPointMax && s.FivePointMax > s.FourPointMax && s.FourPointMax > s.FourPointMin && s.FourPointMin >= 0 {
			n.scale = s
		}
	}
}

// WithClock sets the time source used for years-since-graduation.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalizer cleans candidate profiles. It is immutable after New and safe
// for concurrent use.
type Normalizer struct {
	scale Scale
	now   func() time.Time
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		scale: DefaultScale,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize derives the canonical profile. It never fails.
func (n *Normalizer) Normalize(p model.CandidateProfile) model.NormalizedProfile { //nolint:gocritic // profiles are passed by value
	var out model.NormalizedProfile

	var ok bool
	if out.Degree, ok = Degree(p.Degree); !ok {
		out.Fallbacks |= model.FallbackDegree
	}

	out.Specialization = CleanText(p.Specialization)
	if out.Specialization == "" {
		out.Fallbacks |= model.FallbackSpecialization
	}
	out.SpecializationCode = SpecializationCode(out.Specialization)
	out.Course = CleanText(p.CourseOrSpecialization())

	if out.University, ok = University(p.Institution()); !ok {
		out.Fallbacks |= model.FallbackUniversity
	}
	out.UniversityTier = Tier(out.University)

	if out.CGPA, ok = n.CGPA(p.CGPA.String()); !ok {
		out.Fallbacks |= model.FallbackCGPA
	}

	if out.GraduationYear, ok = GraduationYear(p.GraduationYear.String()); ok {
		out.YearsSinceGraduation = max(0, n.now().Year()-out.GraduationYear)
	} else {
		out.Fallbacks |= model.FallbackGraduationYear
	}

	return out
}

// CGPA converts a grade on an unknown scale to the 10-point scale, rounded
// to two decimals. The boolean is false when the input could not be read and
// 0 was returned instead.
func (n *Normalizer) CGPA(raw string) (float64, bool) {
	v, ok := parseLooseFloat(raw)
	if !ok || v < 0 {
		return 0, false
	}

	s := n.scale
	switch {
	case v > tenPointMax && v <= s.PercentMax:
		v = v / s.PercentMax * tenPointMax
	case v > s.FourPointMax && v <= s.FivePointMax:
		v = v / s.FivePointMax * tenPointMax
	case v > s.FourPointMin && v <= s.FourPointMax:
		v = v / s.FourPointMax * tenPointMax
	case v > s.PercentMax:
		// Beyond every known scale; treat as unreadable rather than clamp.
		return 0, false
	}

	return math.Min(tenPointMax, math.Round(v*cgpaDecimals)/cgpaDecimals), true
}

// parseLooseFloat reads a JSON number such as "85" or "8.5e1" as is. Any
// other text keeps only its digits and first decimal point, so "85%" is 85.
func parseLooseFloat(raw string) (float64, bool) {
	if t := strings.TrimSpace(raw); isJSONNumber(t) {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}

	var b strings.Builder
	dot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !dot:
			dot = true
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isJSONNumber reports whether t is exactly one JSON number. A valid JSON
// text starting with a digit or minus sign can only be a number.
func isJSONNumber(t string) bool {
	if t == "" || (t[0] != '-' && (t[0] < '0' || t[0] > '9')) {
		return false
	}
	return json.Valid([]byte(t))
}

// Degree maps free text to a canonical degree label. Unknown but readable
// degrees are title-cased; empty or letterless input becomes "Other".
func Degree(raw string) (string, bool) {
	text := CleanText(raw)
	if text == "" || !strings.ContainsFunc(text, unicode.IsLetter) {
		return OtherDegree, false
	}
	for _, rule := range degreeRules {
		for _, alias := range rule.aliases {
			if containsPhrase(text, alias) {
				return rule.label, true
			}
		}
	}
	return cases.Title(language.Und).String(text), true
}

// SpecializationCode returns the code of the first category with a keyword
// contained in the cleaned specialization, or 0 when none is. Matching is
// plain substring containment, so "aiml" is 102 and "physics" is 101.
func SpecializationCode(text string) int {
	text = CleanText(text)
	if text == "" {
		return 0
	}
	for _, c := range specializationCategories {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.code
			}
		}
	}
	return 0
}

// University cleans an institution name, expanding well-known abbreviations
// when they make up the whole name.
func University(raw string) (string, bool) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return UnknownUniversity, false
	}
	if full, ok := universityAbbreviations[strings.ToLower(name)]; ok {
		return full, true
	}
	return name, true
}

// Tier buckets a university name by substring containment: tier-1 list
// first, then tier-2, else 3. "IIIT Hyderabad" contains "iit" and is tier 1.
func Tier(name string) int {
	text := CleanText(name)
	if text == "" {
		return DefaultTier
	}
	for _, kw := range tier1Universities {
		if strings.Contains(text, kw) {
			return 1
		}
	}
	for _, kw := range tier2Universities {
		if strings.Contains(text, kw) {
			return 2
		}
	}
	return DefaultTier
}

// GraduationYear parses a completion year such as "2023" or "2023.0".
func GraduationYear(raw string) (int, bool) {
	v, ok := parseLooseFloat(strings.TrimSpace(raw))
	if !ok || math.Abs(v-math.Trunc(v)) > yearFloatTruncation {
		return 0, false
	}
	year := int(v)
	if year < minGraduationYear || year > maxGraduationYear {
		return 0, false
	}
	return year, true
}

// CleanText lower-cases, trims and collapses internal whitespace.
func CleanText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CleanSet lower-cases and de-duplicates a list of labels, dropping empties.
// Order of first appearance is kept.
func CleanSet(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		c := CleanText(it)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// containsPhrase reports whether needle occurs in text on word boundaries,
// so "it" matches "it services" but not "architecture".
func containsPhrase(text, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; from+len(needle) <= len(text); {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 0x80
}
