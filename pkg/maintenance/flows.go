package maintenance

import (
	"fmt"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/dsl"
	"github.com/aretw0/stepwise/pkg/registry"
	"github.com/aretw0/stepwise/pkg/schema"
)

// Flow names.
const (
	FlowDIY  = "diy"
	FlowShop = "shop"
)

// Step ids shared by both flows.
const (
	StepBasic    = "basic"
	StepServices = "services"
	StepParts    = "parts"
	StepShop     = "shop"
	StepPhotos   = "photos"
	StepNotes    = "notes"
	StepReview   = "review"
)

// MaxNotes bounds the free-text notes step.
const MaxNotes = 500

// Options tunes the generated flows.
type Options struct {
	// Now is the clock used by date validation. Defaults to time.Now.
	Now func() time.Time
	// PersistKey enables autosave for the flow.
	PersistKey string
	// Initial seeds the run data, e.g. to edit an existing log.
	Initial domain.Data
}

// Basic is the schema of the basic info step.
func Basic() schema.Schema {
	return schema.Schema{
		{Key: "date", Type: schema.Date("Service date")},
		{Key: "mileage", Type: schema.Mileage()},
		{Key: "wantsPhotos", Type: schema.Optional(schema.Bool())},
	}
}

// Services is the schema of the services step.
func Services() schema.Schema {
	return schema.Schema{
		{Key: "services", Type: schema.AtLeastOne("service")},
	}
}

// Parts is the schema of the DIY parts and cost step.
func Parts() schema.Schema {
	return schema.Schema{
		{Key: "parts", Type: schema.Optional(schema.Slice(schema.String()))},
		{Key: "cost", Type: schema.Cost("Parts cost", schema.DefaultMaxCost)},
	}
}

// Shop is the schema of the shop info step.
func Shop() schema.Schema {
	return schema.Schema{
		{Key: "shopName", Type: schema.Text("Shop name", 2, 100)},
		{Key: "cost", Type: schema.Cost("Total cost", schema.DefaultMaxCost)},
	}
}

// Notes is the schema of the notes step.
func Notes() schema.Schema {
	return schema.Schema{
		{Key: "notes", Type: schema.Optional(schema.Note("Notes", MaxNotes))},
	}
}

// Photos is the schema of the photos step. Capture happens elsewhere;
// the step only records references.
func Photos() schema.Schema {
	return schema.Schema{
		{Key: "photos", Type: schema.Optional(schema.Slice(schema.String()))},
	}
}

// DIY builds the do-it-yourself service flow.
func DIY(opts Options) (domain.Config, error) {
	return build(FlowDIY, StepParts, "Parts & Cost", Parts(), opts)
}

// ShopService builds the shop service flow.
func ShopService(opts Options) (domain.Config, error) {
	return build(FlowShop, StepShop, "Shop Info", Shop(), opts)
}

func build(flow, costStep, costTitle string, costSchema schema.Schema, opts Options) (domain.Config, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	required := []reviewed{
		{id: StepBasic, title: "Basic Info", schema: Basic()},
		{id: StepServices, title: "Services", schema: Services()},
		{id: costStep, title: costTitle, schema: costSchema},
	}

	b := dsl.New(flow).Clock(now).AllowCancel().InitialData(opts.Initial)
	if opts.PersistKey != "" {
		b.PersistKey(opts.PersistKey)
	}
	for _, r := range required {
		b.Step(r.id).Title(r.title).Fields(r.schema...)
	}
	b.Step(StepPhotos).Title("Photos").Subtitle("Attach receipts or pictures").
		Fields(Photos()...).ShowWhen(StepBasic, "wantsPhotos").Skippable()
	b.Step(StepNotes).Title("Notes").Fields(Notes()...).Skippable()
	b.Step(StepReview).Title("Review").Subtitle("Check everything before saving").
		Validate(reviewAll(required, now))

	cfg, err := b.Build()
	if err != nil {
		return domain.Config{}, fmt.Errorf("maintenance: %w", err)
	}
	return cfg, nil
}

type reviewed struct {
	id     string
	title  string
	schema schema.Schema
}

// reviewAll re-checks the required steps so a log seeded from stale data
// cannot be saved from the review step.
func reviewAll(steps []reviewed, now func() time.Time) domain.ValidateFunc {
	return func(_ domain.StepData, all domain.Data) []string {
		var errs []string
		for _, s := range steps {
			res := schema.EvaluateAt(s.schema, all[s.id], now())
			for _, msg := range res.Errors {
				errs = append(errs, s.title+": "+msg)
			}
		}
		return errs
	}
}

// Register adds both flows to reg. Each lookup builds a fresh configuration.
func Register(reg *registry.Registry, opts Options) error {
	if err := reg.Register(FlowDIY, func() (domain.Config, error) { return DIY(opts) }); err != nil {
		return err
	}
	return reg.Register(FlowShop, func() (domain.Config, error) { return ShopService(opts) })
}
