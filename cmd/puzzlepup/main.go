// Package main is the single-binary entrypoint for the PuzzlePup backend.
package main

import "github.com/puzzlepup/puzzlepup/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
