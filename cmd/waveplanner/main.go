package main

import (
	"os"

	"github.com/solatis/waveplanner/cmd/waveplanner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
