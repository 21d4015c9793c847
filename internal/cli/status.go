package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var (
	statusDB   string
	statusLogs bool
)

var statusCmd = &cobra.Command{
	Use:   "status <build-id>",
	Short: "Show the status of a build",
	Long: `Display a build with all of its gates and steps.

EXAMPLES:
  # Show a build
  gateci status local-1a2b3c4d

  # Include captured step output
  gateci status local-1a2b3c4d --logs`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "gateci.db", "path to the build database")
	statusCmd.Flags().BoolVar(&statusLogs, "logs", false, "include captured step output")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	buildID := args[0]

	store, err := sqlite.New(statusDB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	orchestrator := service.NewOrchestrator(store)
	detail, err := orchestrator.GetBuild(ctx, buildID)
	if err != nil {
		return err
	}

	printBuild(detail)

	if statusLogs {
		for _, job := range detail.Jobs {
			chunks, err := orchestrator.GetJobLog(ctx, buildID, job.Name)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				continue
			}
			fmt.Printf("\n--- %s ---\n", job.Name)
			for _, c := range chunks {
				fmt.Print(c.Chunk)
			}
		}
	}

	return nil
}

// printBuild renders a build with its jobs and steps.
func printBuild(detail *service.BuildWithJobs) {
	b := detail.Build
	fmt.Printf("Build:    %s\n", b.ID)
	fmt.Printf("Repo:     %s@%s\n", b.Repo, b.CommitSHA)
	fmt.Printf("Workflow: %s (runtime %s)\n", b.WorkflowName, b.RuntimeVersion)
	fmt.Printf("State:    %s\n", b.State)
	if b.Failure != nil {
		fmt.Printf("Failure:  %s\n", b.Failure.Message)
	}
	if b.StartedAt != nil && b.FinishedAt != nil {
		fmt.Printf("Duration: %s\n", b.FinishedAt.Sub(*b.StartedAt).Round(time.Millisecond))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nGATE\tKIND\tSTATE\tSTEP\tEXIT")
	for _, job := range detail.Jobs {
		step, exit := "-", "-"
		for i := range job.Steps {
			s := &job.Steps[i]
			if s.State.IsFinal() {
				step = string(s.Kind)
				exit = fmt.Sprintf("%d", s.ExitCode)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", job.Name, job.Kind, job.State, step, exit)
	}
	w.Flush()

	for _, job := range detail.Jobs {
		if job.Failure != nil {
			fmt.Printf("\n%s: %s\n", job.Name, job.Failure.Message)
		}
	}
}
