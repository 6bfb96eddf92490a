package main

import (
	"os"

	"github.com/relmap/relmap/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
