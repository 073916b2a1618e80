package main

import (
	"os"

	"github.com/etk18/portfolio/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
