package main

import (
	"fmt"
	"os"

	"github.com/jensroland/git-lineage/cmd"
)

var version = "dev"

func main() {
	if err := cmd.NewApp(version).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
