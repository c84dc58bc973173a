package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "dpistack",
		Short: "Orchestrates the P4 DPI demo stack",
		Long: "dpistack compiles the P4 program, brings up the emulated network,\n" +
			"launches one controller worker per switch plus the data-serving API,\n" +
			"and supervises the whole stack until interrupted.",
		SilenceUsage: true,
	}
	root.AddCommand(newStartCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dpistack version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dpistack %s\n", version)
		},
	}
}
