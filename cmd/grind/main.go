package main

import (
	"os"

	"github.com/grind-ai/grind/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
