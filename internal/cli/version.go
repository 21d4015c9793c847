package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version of gateci.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("gateci %s\n", version)
	fmt.Println("Push-triggered quality gates: unit tests, type checks, and lint")
	fmt.Println()
	fmt.Println("For help: gateci --help")
}
