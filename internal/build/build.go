// Package build carries values stamped in at link time.
package build

// Version is set with -ldflags "-X github.com/drummonds/pdfpages/internal/build.Version=v1.2.3".
var Version = "dev"
