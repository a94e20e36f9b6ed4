package main

import (
	"os"

	"github.com/sagalabs/saga/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
