// Package buildinfo carries release metadata injected at link time:
//
//	go build -ldflags "-X github.com/m3rciful/bookmarket/core/buildinfo.Version=v1.0.0 \
//	  -X github.com/m3rciful/bookmarket/core/buildinfo.Commit=abcdef0 \
//	  -X github.com/m3rciful/bookmarket/core/buildinfo.Date=2026-10-17T12:00:00Z"
package buildinfo

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source revision.
	Commit = "local"
	// Date is the build time in RFC3339.
	Date = ""
)
