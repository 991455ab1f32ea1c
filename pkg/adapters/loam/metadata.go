package loam

// StepMetadata is the frontmatter of a step document.
//
//	---
//	flow: diy
//	title: Basic Info
//	fields:
//	  date: date
//	  mileage: mileage
//	  wantsPhotos: ?bool
//	---
//	When was the service done?
type StepMetadata struct {
	// ID overrides the step id derived from the file name.
	ID string `json:"id" mapstructure:"id"`
	// Flow groups steps into a wizard. Empty means the directory of the
	// document, or the loader's default flow at the repository root.
	Flow     string `json:"flow" mapstructure:"flow"`
	Title    string `json:"title" mapstructure:"title"`
	Subtitle string `json:"subtitle" mapstructure:"subtitle"`

	// Fields maps field keys to type expressions ("mileage", "?bool",
	// "text(2,100)") or single element lists for slices ([string]).
	Fields map[string]any `json:"fields" mapstructure:"fields"`

	Skippable bool `json:"skippable" mapstructure:"skippable"`
	// ShowWhen hides the step unless the bool field "step.field" is true.
	ShowWhen string `json:"show_when" mapstructure:"show_when"`
	// AllowCancel on any step offers Cancel for the whole flow.
	AllowCancel bool `json:"allow_cancel" mapstructure:"allow_cancel"`
	// Initial seeds the step's data.
	Initial map[string]any `json:"initial" mapstructure:"initial"`
}
