package main

import (
	"os"

	"github.com/agrocredit/agrolend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
