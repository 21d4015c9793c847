package cli

import (
	"fmt"
	"strings"

	"github.com/example/gateci/internal/workflow"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a workflow file",
	Long: `Parse and validate a workflow file without running anything.

Reports every problem found, not just the first one.

EXAMPLES:
  # Validate gateci.yml in the current directory
  gateci validate

  # Validate a specific file
  gateci validate ci/quality-gates.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := workflow.DefaultFileName
	if len(args) == 1 {
		path = args[0]
	}

	wf, err := workflow.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if err := workflow.Validate(wf); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}

	runtime, err := wf.ActiveRuntime()
	if err != nil {
		return err
	}

	fmt.Printf("%s: OK\n", path)
	fmt.Printf("  workflow: %s\n", wf.Name)
	fmt.Printf("  runtime:  %s\n", runtime)
	fmt.Printf("  jobs:     %s\n", strings.Join(wf.JobNames(), ", "))
	return nil
}
