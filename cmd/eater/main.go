// Package main provides the entry point for the eater CLI.
package main

import (
	"github.com/colthorp/eater-cli-go/internal/cli"
)

func main() {
	cli.Execute()
}
