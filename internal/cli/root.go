// Package cli implements the gateci command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gateci",
	Short: "Run push-triggered quality gates against a repository",
	Long: `gateci runs a repository's quality gates locally, the same way the
gatecid server runs them for a push.

Each gate is an independent job with a fixed step sequence:
  1. checkout        - clone the repository at the pushed commit
  2. setup-runtime   - probe the configured interpreter version
  3. install-deps    - install the dependency manifest plus the gate's tool
  4. verify          - run the gate's verification command

All gates run in parallel and the build passes only if every gate passes.

WORKFLOW:
  1. gateci validate            (check the workflow file)
  2. gateci run                 (run all gates against a commit)
  3. gateci status <build-id>   (inspect a finished build)
  4. gateci list                (list recent builds)

EXAMPLES:
  # Validate the workflow file in the current directory
  gateci validate

  # Run all gates against HEAD of the current repository
  gateci run

  # Run gates for a specific commit of another repository
  gateci run --repo /path/to/repo --commit 3f2a9c1

  # Inspect a build recorded in the local database
  gateci status local-1a2b3c4d`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}
