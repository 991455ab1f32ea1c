package maintenance_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/maintenance"
	"github.com/aretw0/stepwise/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

func ids(steps []domain.StepDefinition) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func validData() domain.Data {
	return domain.Data{
		maintenance.StepBasic:    {"date": "2026-05-01", "mileage": "75,000", "wantsPhotos": false},
		maintenance.StepServices: {"services": []any{"oil_change", "tire_rotation"}},
		maintenance.StepParts:    {"parts": []any{"oil filter"}, "cost": "49.90"},
		maintenance.StepShop:     {"shopName": "Main St Garage", "cost": "120"},
	}
}

func TestDIY_Sequence(t *testing.T) {
	cfg, err := maintenance.DIY(maintenance.Options{Now: clock})
	require.NoError(t, err)
	assert.Equal(t, maintenance.FlowDIY, cfg.Flow)
	assert.True(t, cfg.AllowCancel)

	assert.Equal(t, []string{"basic", "services", "parts", "notes", "review"}, ids(cfg.Visible(domain.Data{})))

	withPhotos := domain.Data{maintenance.StepBasic: {"wantsPhotos": true}}
	assert.Equal(t, []string{"basic", "services", "parts", "photos", "notes", "review"}, ids(cfg.Visible(withPhotos)))
}

func TestShop_Sequence(t *testing.T) {
	cfg, err := maintenance.ShopService(maintenance.Options{Now: clock, PersistKey: "shop-draft"})
	require.NoError(t, err)
	assert.Equal(t, "shop-draft", cfg.PersistKey)
	assert.Equal(t, []string{"basic", "services", "shop", "notes", "review"}, ids(cfg.Visible(domain.Data{})))
}

func TestBasicStep_Messages(t *testing.T) {
	cfg, err := maintenance.DIY(maintenance.Options{Now: clock})
	require.NoError(t, err)
	basic, _ := cfg.Step(maintenance.StepBasic)

	errs := basic.Check(domain.Data{maintenance.StepBasic: {"date": "2026-05-03", "mileage": "12.5"}})
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, "Odometer reading must be a whole number (no decimals)")

	assert.Empty(t, basic.Check(validData()))
}

func TestShopStep_Messages(t *testing.T) {
	cfg, err := maintenance.ShopService(maintenance.Options{Now: clock})
	require.NoError(t, err)
	shop, _ := cfg.Step(maintenance.StepShop)

	errs := shop.Check(domain.Data{maintenance.StepShop: {"shopName": "X", "cost": "-3"}})
	assert.Equal(t, []string{
		"Shop name must be at least 2 characters",
		"Total cost cannot be negative",
	}, errs)
}

func TestServicesStep_AtLeastOne(t *testing.T) {
	cfg, err := maintenance.DIY(maintenance.Options{Now: clock})
	require.NoError(t, err)
	services, _ := cfg.Step(maintenance.StepServices)

	assert.Equal(t, []string{"Select at least one service"}, services.Check(domain.Data{}))
	assert.Empty(t, services.Check(validData()))
}

func TestReviewStep_RechecksRequiredSteps(t *testing.T) {
	cfg, err := maintenance.DIY(maintenance.Options{Now: clock})
	require.NoError(t, err)
	review, _ := cfg.Step(maintenance.StepReview)

	assert.Empty(t, review.Check(validData()))

	stale := validData()
	delete(stale, maintenance.StepServices)
	assert.Equal(t, []string{"Services: Select at least one service"}, review.Check(stale))
}

func TestOptionalSteps(t *testing.T) {
	cfg, err := maintenance.DIY(maintenance.Options{Now: clock})
	require.NoError(t, err)

	photos, _ := cfg.Step(maintenance.StepPhotos)
	notes, _ := cfg.Step(maintenance.StepNotes)
	assert.True(t, photos.CanSkip)
	assert.True(t, notes.CanSkip)
	assert.Empty(t, notes.Check(domain.Data{}))
	assert.Empty(t, notes.Check(domain.Data{maintenance.StepNotes: {"notes": "   "}}))
	assert.Empty(t, notes.Check(domain.Data{maintenance.StepNotes: {"notes": "Used 5W-30 oil; next change due at 80k!"}}))
	assert.Empty(t, notes.Check(domain.Data{maintenance.StepNotes: {"notes": "Noise from front-left? Check brakes: 50% pad left"}}))
	assert.Equal(t, []string{"Notes must be at most 500 characters"},
		notes.Check(domain.Data{maintenance.StepNotes: {"notes": strings.Repeat("x", maintenance.MaxNotes+1)}}))
}

func TestRegister(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, maintenance.Register(reg, maintenance.Options{Now: clock}))
	assert.Equal(t, []string{"diy", "shop"}, reg.List())

	cfg, err := reg.Get("shop")
	require.NoError(t, err)
	assert.Equal(t, maintenance.FlowShop, cfg.Flow)
}
