package stepwise

import _ "embed"

// Version is the release of the library and the stepwise binary.
//
//go:embed VERSION
var Version string
