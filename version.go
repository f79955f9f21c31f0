package triage

import _ "embed"

// Version is the release of the library and its binaries.
//
//go:embed VERSION
var Version string
