// Package main provides the entrypoint for the DevOps application.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd(afero.NewOsFs(), os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application Error: %s\n", err)
		os.Exit(1)
	}
}
