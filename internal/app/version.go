package app

import "runtime"

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/satcal/internal/app.Version=v1.0.0"
var (
	Version   = "dev"
	GoVersion = runtime.Version()
	BuiltAt   = "unknown"
)
