package dsl

import (
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_KeepsOrderAndOptions(t *testing.T) {
	cfg, err := New("diy").
		AllowCancel().
		PersistKey("diy-draft").
		InitialData(domain.Data{"basic": {"mileage": "10"}}).
		Step("basic").Title("Basic Info").Subtitle("When and how far").
		Step("photos").Skippable().ShowWhen("basic", "wantsPhotos").
		Step("review").Title("Review").
		Build()
	require.NoError(t, err)

	require.Len(t, cfg.Steps, 3)
	assert.Equal(t, []string{"basic", "photos", "review"}, []string{cfg.Steps[0].ID, cfg.Steps[1].ID, cfg.Steps[2].ID})
	assert.Equal(t, "Basic Info", cfg.Steps[0].Title)
	assert.Equal(t, "When and how far", cfg.Steps[0].Subtitle)
	assert.True(t, cfg.Steps[1].CanSkip)
	assert.True(t, cfg.AllowCancel)
	assert.Equal(t, "diy-draft", cfg.PersistKey)
	assert.Equal(t, "diy", cfg.Flow)
	assert.Equal(t, "10", cfg.InitialData["basic"]["mileage"])
}

func TestBuilder_ShowWhen(t *testing.T) {
	cfg := New("x").
		Step("basic").
		Step("photos").ShowWhen("basic", "wantsPhotos").
		Builder().MustBuild()

	photos := cfg.Steps[1]
	assert.False(t, photos.Visible(domain.Data{}))
	assert.False(t, photos.Visible(domain.Data{"basic": {"wantsPhotos": "yes"}}))
	assert.True(t, photos.Visible(domain.Data{"basic": {"wantsPhotos": true}}))
}

func TestBuilder_StepReuse(t *testing.T) {
	b := New("x")
	b.Step("a").Title("First")
	b.Step("b")
	b.Step("a").Subtitle("Again")

	cfg, err := b.Build()
	require.NoError(t, err)
	require.Len(t, cfg.Steps, 2)
	assert.Equal(t, "First", cfg.Steps[0].Title)
	assert.Equal(t, "Again", cfg.Steps[0].Subtitle)
}

func TestBuilder_SchemaAndChecksConcatenate(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cfg, err := New("x").
		Clock(func() time.Time { return now }).
		Step("basic").
		Field("date", schema.Date("Service date")).
		Validate(func(step domain.StepData, _ domain.Data) []string {
			if step["mileage"] == nil {
				return []string{"Mileage is required"}
			}
			return nil
		}).
		Build()
	require.NoError(t, err)

	step := cfg.Steps[0]
	errs := step.Check(domain.Data{"basic": {"date": "2026-03-15"}})
	require.Len(t, errs, 2)
	assert.Equal(t, "Mileage is required", errs[1])

	assert.Empty(t, step.Check(domain.Data{"basic": {"date": "2026-03-14", "mileage": "1"}}))

	fields, ok := step.Renderer.(schema.Schema)
	require.True(t, ok, "schema doubles as renderer")
	assert.Equal(t, []string{"date"}, fields.Keys())
}

func TestBuilder_ExplicitRendererWins(t *testing.T) {
	cfg := New("x").
		Step("basic").Field("n", schema.Int()).Render("custom").
		Builder().MustBuild()
	assert.Equal(t, "custom", cfg.Steps[0].Renderer)
}

func TestBuilder_NoValidatorMeansValid(t *testing.T) {
	cfg := New("x").Step("review").Builder().MustBuild()
	assert.Nil(t, cfg.Steps[0].Validate)
	assert.Empty(t, cfg.Steps[0].Check(domain.Data{}))
}

func TestBuilder_Errors(t *testing.T) {
	_, err := New("empty").Build()
	assert.ErrorIs(t, err, domain.ErrNoSteps)

	_, err = New("blank").Step("").Build()
	assert.ErrorIs(t, err, domain.ErrMissingStepID)

	assert.Panics(t, func() { New("empty").MustBuild() })
}
