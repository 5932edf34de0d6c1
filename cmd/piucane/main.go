// Package main is the single-binary entrypoint for PiùCane.
package main

import "github.com/piucane/piucane/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
