package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxMileage is the upper bound accepted for odometer readings.
	MaxMileage = 2_000_000
	// DefaultMaxCost is the sanity bound applied when a cost field has none.
	DefaultMaxCost = 100_000.0
)

// MsgMileageDecimals is reported for odometer readings with a fractional part.
const MsgMileageDecimals = "Odometer reading must be a whole number (no decimals)"

var costPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// DateType accepts a date that is not later than the evaluation day.
type DateType struct {
	label string
}

// Date creates a required date field that rejects future days.
func Date(label string) Type {
	return &DateType{label: orDefault(label, "Date")}
}

func (t *DateType) Name() string { return "date" }

func (t *DateType) Validate(value any) error {
	return t.ValidateAt(value, time.Now())
}

func (t *DateType) ValidateAt(value any, now time.Time) error {
	var day time.Time
	switch v := value.(type) {
	case nil:
		return Messagef("%s is required", t.label)
	case time.Time:
		if v.IsZero() {
			return Messagef("%s is required", t.label)
		}
		day = v.In(now.Location())
	case *time.Time:
		if v == nil || v.IsZero() {
			return Messagef("%s is required", t.label)
		}
		day = v.In(now.Location())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Messagef("%s is required", t.label)
		}
		parsed, err := parseDate(s, now.Location())
		if err != nil {
			return Messagef("%s must be a valid date", t.label)
		}
		day = parsed
	default:
		return Messagef("%s must be a valid date", t.label)
	}

	if truncateDay(day).After(truncateDay(now)) {
		return Messagef("%s cannot be in the future", t.label)
	}
	return nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MileageType accepts a non-negative whole odometer reading.
type MileageType struct{}

// Mileage creates a required odometer field. Commas are accepted as thousands
// separators; decimals, negatives and readings above MaxMileage are rejected.
func Mileage() Type { return &MileageType{} }

func (t *MileageType) Name() string { return "mileage" }

func (t *MileageType) Validate(value any) error {
	raw, ok := numericText(value)
	if !ok {
		return Messagef("Mileage must be a valid number")
	}
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return Messagef("Mileage is required")
	}
	if strings.Contains(s, ".") {
		return Messagef(MsgMileageDecimals)
	}

	if digits, ok := strings.CutPrefix(s, "-"); ok && asciiDigits(digits) {
		return Messagef("Mileage cannot be negative")
	}
	if !asciiDigits(s) {
		return Messagef("Mileage must be a valid number")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n > MaxMileage {
		return Messagef("Mileage cannot exceed %s", thousands(MaxMileage, 0))
	}
	return nil
}

func asciiDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CostType accepts a non-negative amount with at most two decimals.
type CostType struct {
	label string
	max   float64
}

// Cost creates a required amount field. A max of zero selects DefaultMaxCost.
func Cost(label string, max float64) Type {
	if max <= 0 {
		max = DefaultMaxCost
	}
	return &CostType{label: orDefault(label, "Cost"), max: max}
}

func (t *CostType) Name() string {
	if t.max == DefaultMaxCost {
		return "cost"
	}
	return fmt.Sprintf("cost(%s)", strconv.FormatFloat(t.max, 'f', -1, 64))
}

func (t *CostType) Validate(value any) error {
	raw, ok := numericText(value)
	if !ok {
		return Messagef("%s must be a valid amount (e.g. 12.34)", t.label)
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return Messagef("%s is required", t.label)
	}
	if strings.HasPrefix(s, "-") {
		return Messagef("%s cannot be negative", t.label)
	}
	if !costPattern.MatchString(s) {
		return Messagef("%s must be a valid amount (e.g. 12.34)", t.label)
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(amount, 0) {
		return Messagef("%s must be a valid amount (e.g. 12.34)", t.label)
	}
	if amount > t.max {
		return Messagef("%s cannot exceed %s", t.label, thousands(t.max, 2))
	}
	return nil
}

// TextType accepts a bounded, printable name.
type TextType struct {
	label    string
	min, max int
}

// Text creates a required free-text field. The value is trimmed and inner
// whitespace collapsed before the length bounds and the character allowlist
// (letters, digits, spaces and & ' . , - ( ) / #) are checked.
func Text(label string, min, max int) Type {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = 0
	}
	return &TextType{label: orDefault(label, "Text"), min: min, max: max}
}

func (t *TextType) Name() string {
	if t.max == 0 {
		return fmt.Sprintf("text(%d)", t.min)
	}
	return fmt.Sprintf("text(%d,%d)", t.min, t.max)
}

func (t *TextType) Validate(value any) error {
	if value == nil {
		return Messagef("%s is required", t.label)
	}
	s, ok := value.(string)
	if !ok {
		return Messagef("%s must be text", t.label)
	}
	if !utf8.ValidString(s) {
		return Messagef("%s contains invalid characters", t.label)
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return Messagef("%s contains invalid characters", t.label)
		}
	}

	clean := NormalizeText(s)
	if clean == "" {
		return Messagef("%s is required", t.label)
	}

	n := utf8.RuneCountInString(clean)
	if n < t.min {
		return Messagef("%s must be at least %d characters", t.label, t.min)
	}
	if t.max > 0 && n > t.max {
		return Messagef("%s must be at most %d characters", t.label, t.max)
	}

	for _, r := range clean {
		if !allowedTextRune(r) {
			return Messagef("%s contains invalid characters", t.label)
		}
	}
	return nil
}

// NormalizeText trims, collapses runs of whitespace and applies NFC.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func allowedTextRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == ' ' {
		return true
	}
	return strings.ContainsRune("&'.,-()/#", r)
}

// NoteType accepts free text such as maintenance notes. Unlike TextType it
// keeps punctuation and line breaks and only rejects control characters.
type NoteType struct {
	label string
	max   int
}

// Note creates a required free-text field of at most max characters after
// trimming. A max of zero or less disables the bound.
func Note(label string, max int) Type {
	if max < 0 {
		max = 0
	}
	return &NoteType{label: orDefault(label, "Note"), max: max}
}

func (t *NoteType) Name() string {
	if t.max == 0 {
		return "note"
	}
	return fmt.Sprintf("note(%d)", t.max)
}

func (t *NoteType) Validate(value any) error {
	if value == nil {
		return Messagef("%s is required", t.label)
	}
	s, ok := value.(string)
	if !ok {
		return Messagef("%s must be text", t.label)
	}
	if !utf8.ValidString(s) {
		return Messagef("%s contains invalid characters", t.label)
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return Messagef("%s contains invalid characters", t.label)
		}
	}

	clean := strings.TrimSpace(norm.NFC.String(s))
	if clean == "" {
		return Messagef("%s is required", t.label)
	}
	if t.max > 0 && utf8.RuneCountInString(clean) > t.max {
		return Messagef("%s must be at most %d characters", t.label, t.max)
	}
	return nil
}

// AtLeastOneType requires a non-empty list.
type AtLeastOneType struct {
	label string
}

// AtLeastOne creates a list field that fails when nothing is selected.
func AtLeastOne(label string) Type {
	return &AtLeastOneType{label: orDefault(label, "item")}
}

func (t *AtLeastOneType) Name() string { return "at_least_one" }

func (t *AtLeastOneType) Validate(value any) error {
	if value == nil {
		return Messagef("Select at least one %s", t.label)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Messagef("%s must be a list", t.label)
	}
	if rv.Len() == 0 {
		return Messagef("Select at least one %s", t.label)
	}
	return nil
}

// numericText accepts strings and JSON-ish numbers as text.
func numericText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// thousands formats n with comma separators and the given decimals.
func thousands(n float64, decimals int) string {
	s := strconv.FormatFloat(n, 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
