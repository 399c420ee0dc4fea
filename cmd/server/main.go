package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "hopper",
		Short:        "Backend-for-frontend gateway over the record store, the BI platform and the pipeline orchestrator",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
