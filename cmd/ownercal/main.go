package main

import (
	"fmt"
	"os"

	"ownercal/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ownercal:", err)
		os.Exit(1)
	}
}
