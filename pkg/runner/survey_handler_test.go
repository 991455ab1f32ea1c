package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSurvey(t *testing.T, fn func(prompt survey.Prompt, response interface{}) error) {
	t.Helper()
	orig := askSurveyOne
	askSurveyOne = func(prompt survey.Prompt, response interface{}, _ ...survey.AskOpt) error {
		return fn(prompt, response)
	}
	t.Cleanup(func() { askSurveyOne = orig })
}

func TestSurveyHandler_AskByKind(t *testing.T) {
	var prompts []survey.Prompt
	stubSurvey(t, func(prompt survey.Prompt, response interface{}) error {
		prompts = append(prompts, prompt)
		switch r := response.(type) {
		case *bool:
			*r = true
		case *string:
			if input, ok := prompt.(*survey.Input); ok && input.Message == "Services" {
				*r = "oil, brakes"
			} else {
				*r = " 75,000 "
			}
		}
		return nil
	})
	h := NewSurveyHandler(nil, nil, nil)
	ctx := context.Background()

	v, err := h.Ask(ctx, schema.Field{Key: "wantsPhotos", Type: schema.Bool()}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = h.Ask(ctx, schema.Field{Key: "services", Type: schema.AtLeastOne("service")}, []any{"oil"})
	require.NoError(t, err)
	assert.Equal(t, []any{"oil", "brakes"}, v)
	assert.Equal(t, "oil", prompts[1].(*survey.Input).Default)

	v, err = h.Ask(ctx, schema.Field{Key: "mileage", Type: schema.Mileage()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "75,000", v)
}

func TestSurveyHandler_Choose(t *testing.T) {
	stubSurvey(t, func(prompt survey.Prompt, response interface{}) error {
		sel := prompt.(*survey.Select)
		*(response.(*string)) = sel.Options[1]
		return nil
	})
	h := NewSurveyHandler(nil, nil, nil)

	a, err := h.Choose(context.Background(), []Action{ActionNext, ActionCancel})
	require.NoError(t, err)
	assert.Equal(t, ActionCancel, a)
}

func TestSurveyHandler_InterruptCancels(t *testing.T) {
	stubSurvey(t, func(survey.Prompt, interface{}) error { return terminal.InterruptErr })
	h := NewSurveyHandler(nil, nil, nil)

	_, err := h.Confirm(context.Background(), "Discard?")
	assert.True(t, errors.Is(err, context.Canceled))
}
