package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/executor"
	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage/sqlite"
	"github.com/example/gateci/internal/workflow"
	"github.com/example/gateci/pkg/id"
	"github.com/spf13/cobra"
)

var (
	runFile      string
	runDB        string
	runRepo      string
	runRef       string
	runCommit    string
	runWorkspace string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all quality gates against a commit",
	Long: `Run every gate declared in the workflow file against a commit, the
same way the server would for a push.

Each gate runs as an independent job: a failing gate never stops the
others, and the build fails if any gate fails. Results are recorded in
the local database for 'gateci status' and 'gateci list'.

The exit code is 0 when all gates pass and 1 when any gate fails.

EXAMPLES:
  # Run gates for HEAD of the current repository
  gateci run

  # Run gates for a specific commit
  gateci run --commit 3f2a9c1

  # Use a different workflow file and repository
  gateci run --file ci/quality-gates.yml --repo /path/to/repo`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", workflow.DefaultFileName, "workflow file to run")
	runCmd.Flags().StringVar(&runDB, "db", "gateci.db", "path to the build database")
	runCmd.Flags().StringVar(&runRepo, "repo", ".", "repository to check out")
	runCmd.Flags().StringVar(&runRef, "ref", "refs/heads/main", "ref the commit was pushed to")
	runCmd.Flags().StringVar(&runCommit, "commit", "HEAD", "commit to verify")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "directory for job working copies (default: temp dir)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted! Aborting running gates...")
		cancel()
	}()

	wf, err := workflow.ParseFile(runFile)
	if err != nil {
		return fmt.Errorf("parse %s: %w", runFile, err)
	}
	if err := workflow.Validate(wf); err != nil {
		return fmt.Errorf("validate %s: %w", runFile, err)
	}

	store, err := sqlite.New(runDB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	orchestrator := service.NewOrchestrator(store)
	engine := service.NewEngine(store, executor.NewLocalExecutor(), service.EngineConfig{
		Workspace: runWorkspace,
	})

	event := domain.NewPushEvent(runRepo, runRef, runCommit)
	resp, err := orchestrator.CreateBuild(ctx, &service.CreateBuildRequest{
		BuildID:  id.WithPrefix("local"),
		Event:    event,
		Workflow: wf,
	})
	if err != nil {
		return fmt.Errorf("failed to plan build: %w", err)
	}

	fmt.Printf("Build %s: %s@%s, runtime %s\n", resp.Build.ID, runRepo, runCommit, resp.Build.RuntimeVersion)
	for _, job := range resp.Jobs {
		fmt.Printf("  gate %-12s (%s)\n", job.Name, job.Kind)
	}
	fmt.Println()

	build, err := engine.RunBuild(ctx, resp.Build.ID, wf)
	if err != nil {
		return fmt.Errorf("build execution failed: %w", err)
	}

	detail, err := orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		return err
	}
	printBuild(detail)

	if build.State != domain.BuildStatePassed {
		// Non-zero exit without the extra "Error:" noise from cobra.
		os.Exit(1)
	}
	return nil
}
