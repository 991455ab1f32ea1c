package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"under limit", strings.Repeat("a", DefaultMaxInputSize-1), false},
		{"at limit", strings.Repeat("a", DefaultMaxInputSize), false},
		{"over limit", strings.Repeat("a", DefaultMaxInputSize+1), true},
		// The limit counts bytes, so 2049 two-byte runes exceed it.
		{"multibyte over limit", strings.Repeat("ü", DefaultMaxInputSize/2+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeInput(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSanitizeInput_StripsControls(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Joe's Garage", "Joe's Garage"},
		{"keeps layout controls", "line 1\r\nline 2\tend", "line 1\r\nline 2\tend"},
		{"escape sequence", "\x1b[31m45,000\x1b[0m", "[31m45,000[0m"},
		{"null and bell", "oil\x00 change\x07", "oil change"},
		{"delete", "brakes\x7f", "brakes"},
		{"c1 control", "tires\u009b2J", "tires2J"},
		{"keeps unicode", "Müller ✓ 5W-30", "Müller ✓ 5W-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")
	_, err := SanitizeInput("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)
	_, err = SanitizeInput("12345")
	assert.NoError(t, err)

	t.Setenv(EnvMaxInputSize, "not-a-number")
	_, err = SanitizeInput(strings.Repeat("a", 11))
	assert.NoError(t, err, "invalid override falls back to the default")
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSurveyHandler_SanitizesAnswers(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "16")
	answers := []string{
		"\x1b[1mQuick Lube\x07",
		strings.Repeat("x", 17),
		"oil,\x00 brakes",
		"tires, " + strings.Repeat("y", 16),
	}
	stubSurvey(t, func(_ survey.Prompt, response interface{}) error {
		*(response.(*string)) = answers[0]
		answers = answers[1:]
		return nil
	})
	h := NewSurveyHandler(nil, nil, nil)
	ctx := context.Background()
	name := schema.Field{Key: "shopName", Type: schema.Text("Shop name", 2, 100)}
	services := schema.Field{Key: "services", Type: schema.AtLeastOne("service")}

	v, err := h.Ask(ctx, name, nil)
	require.NoError(t, err)
	assert.Equal(t, "[1mQuick Lube", v)

	_, err = h.Ask(ctx, name, nil)
	assert.ErrorIs(t, err, ErrInputTooLarge)

	v, err = h.Ask(ctx, services, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"oil", "brakes"}, v)

	_, err = h.Ask(ctx, services, nil)
	assert.ErrorIs(t, err, ErrInputTooLarge)
}
