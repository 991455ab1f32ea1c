package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ParseType converts a type expression to a Type with default labels.
// Supports basic types ("string", "int", "float", "bool"), slices ("[string]"),
// optional types ("?cost") and the field kinds "date", "mileage", "cost",
// "cost(5000)", "text(2,100)", "note(500)" and "at_least_one".
func ParseType(typeStr string) (Type, error) {
	return parseType(typeStr, "")
}

// ParseField is ParseType with messages labelled after the field key
// (e.g. "shop_name" reads as "Shop name").
func ParseField(key, typeStr string) (Type, error) {
	return parseType(typeStr, Humanize(key))
}

func parseType(typeStr, label string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if strings.HasPrefix(typeStr, "?") {
		inner, err := parseType(typeStr[1:], label)
		if err != nil {
			return nil, err
		}
		return Optional(inner), nil
	}

	// Handle slice types: [string], [int], etc.
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := parseType(typeStr[1:len(typeStr)-1], label)
		if err != nil {
			return nil, err
		}
		return Slice(elemType), nil
	}

	name, args, err := splitArgs(typeStr)
	if err != nil {
		return nil, err
	}

	switch name {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "date":
		return Date(label), nil
	case "mileage":
		return Mileage(), nil
	case "at_least_one":
		return AtLeastOne(strings.ToLower(label)), nil
	case "cost":
		max := 0.0
		if len(args) > 0 {
			max, err = strconv.ParseFloat(args[0], 64)
			if err != nil {
				return nil, fmt.Errorf("cost: invalid max %q", args[0])
			}
		}
		return Cost(label, max), nil
	case "text":
		min, max := 1, 0
		if len(args) > 0 {
			if min, err = strconv.Atoi(args[0]); err != nil {
				return nil, fmt.Errorf("text: invalid min %q", args[0])
			}
		}
		if len(args) > 1 {
			if max, err = strconv.Atoi(args[1]); err != nil {
				return nil, fmt.Errorf("text: invalid max %q", args[1])
			}
		}
		return Text(label, min, max), nil
	case "note":
		max := 0
		if len(args) > 0 {
			if max, err = strconv.Atoi(args[0]); err != nil {
				return nil, fmt.Errorf("note: invalid max %q", args[0])
			}
		}
		return Note(label, max), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

func splitArgs(typeStr string) (string, []string, error) {
	open := strings.IndexByte(typeStr, '(')
	if open < 0 {
		return typeStr, nil, nil
	}
	if !strings.HasSuffix(typeStr, ")") {
		return "", nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
	var args []string
	for _, a := range strings.Split(typeStr[open+1:len(typeStr)-1], ",") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return typeStr[:open], args, nil
}

// ParseTypeMap converts a map of field names to type strings into a Schema,
// ordered by field name.
// Example: {"date": "date", "mileage": "mileage"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	keys := make([]string, 0, len(typeMap))
	for key := range typeMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make(Schema, 0, len(keys))
	for _, key := range keys {
		t, err := ParseField(key, typeMap[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result = append(result, Field{Key: key, Type: t})
	}
	return result, nil
}

// Humanize turns a field key into a sentence-case label.
func Humanize(key string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range key {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteByte(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte(' ')
		}
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}
