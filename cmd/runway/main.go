package main

import (
	"os"

	"github.com/rustyeddy/runway/cmd/runway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
