/*
Package dsl provides a fluent builder for wizard configurations.

It keeps step order, turns schemas into step validators and renderers, and
validates the result so construction errors surface at Build time.

	cfg, err := dsl.New("diy").
		Step("basic").Title("Basic Info").
		Field("date", schema.Date("Service date")).
		Field("mileage", schema.Mileage()).
		Step("photos").Title("Photos").Skippable().
		ShowWhen("basic", "wantsPhotos").
		Step("review").Title("Review").
		Build()
*/
package dsl
