// Package schema provides declarative field validation for wizard steps.
//
// A Schema is an ordered list of fields, each bound to a Type. Evaluation is
// collect-all: every failing field reports, in field order, so a form can show
// every problem at once. Evaluation never panics; a panicking custom type is
// reported as a failure of its field.
//
// Besides the basic types (string, int, float, bool, slices and custom
// validators) the package ships the field kinds used by maintenance forms:
//
//	basic := schema.Schema{
//	    {Key: "date", Type: schema.Date("Service date")},
//	    {Key: "mileage", Type: schema.Mileage()},
//	}
//
//	res := schema.Evaluate(basic, map[string]any{"mileage": "12.5"})
//	// res.Valid == false
//	// res.Errors == ["Service date is required",
//	//                "Odometer reading must be a whole number (no decimals)"]
//
// Date rules are relative to the evaluation time; EvaluateAt and ValidateAt
// pin the clock. Schemas can also be parsed from type expressions:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "shop_name": "text(2,100)",
//	    "total":     "cost",
//	    "tip":       "?cost(500)",
//	})
package schema
