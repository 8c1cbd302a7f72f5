package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "radiancefleet",
		Short: "RadianceFleet dark-fleet detection and risk-triage engine",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newScoreCmd())
	root.AddCommand(newStreamCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
