package maintenance_test

import (
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/maintenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLog_DIY(t *testing.T) {
	data := validData()
	data[maintenance.StepNotes] = domain.StepData{"notes": "  synthetic 5w30  "}
	data[maintenance.StepPhotos] = domain.StepData{"photos": []any{"receipt.jpg"}}

	log, err := maintenance.ToLog(maintenance.FlowDIY, data)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), log.Basic.Date)
	assert.Equal(t, int64(75000), log.Basic.Mileage)
	assert.Equal(t, []string{"oil_change", "tire_rotation"}, log.Services.Services)
	require.NotNil(t, log.Parts)
	assert.Equal(t, []string{"oil filter"}, log.Parts.Parts)
	assert.InDelta(t, 49.90, log.Cost(), 0.001)
	assert.Nil(t, log.Shop)
	assert.Empty(t, log.Photos.Photos, "photos dropped when turned off")
	assert.Equal(t, "synthetic 5w30", log.Notes.Notes)
}

func TestToLog_Shop(t *testing.T) {
	data := validData()
	data[maintenance.StepBasic]["wantsPhotos"] = true
	data[maintenance.StepBasic]["date"] = time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC)
	data[maintenance.StepPhotos] = domain.StepData{"photos": []string{"a.jpg"}}

	log, err := maintenance.ToLog(maintenance.FlowShop, data)
	require.NoError(t, err)

	require.NotNil(t, log.Shop)
	assert.Nil(t, log.Parts)
	assert.Equal(t, "Main St Garage", log.Shop.Name)
	assert.InDelta(t, 120.0, log.Cost(), 0.001)
	assert.Equal(t, 30, log.Basic.Date.Day())
	assert.Equal(t, []string{"a.jpg"}, log.Photos.Photos)
}

func TestToLog_InvalidDate(t *testing.T) {
	data := validData()
	data[maintenance.StepBasic]["date"] = "yesterday"
	_, err := maintenance.ToLog(maintenance.FlowDIY, data)
	assert.Error(t, err)
}
