package main

import (
	"os"

	"github.com/conneroisu/wikilight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
