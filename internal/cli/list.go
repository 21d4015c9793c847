package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage"
	"github.com/example/gateci/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var (
	listDB    string
	listRepo  string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent builds",
	Long: `List builds recorded in the local database, most recent first.

EXAMPLES:
  # List the 20 most recent builds
  gateci list

  # List builds for one repository
  gateci list --repo /path/to/repo`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listDB, "db", "gateci.db", "path to the build database")
	listCmd.Flags().StringVar(&listRepo, "repo", "", "only show builds for this repository")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of builds to show")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := sqlite.New(listDB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	orchestrator := service.NewOrchestrator(store)
	builds, err := orchestrator.ListBuilds(ctx, storage.ListOptions{
		Repo:  listRepo,
		Limit: listLimit,
	})
	if err != nil {
		return err
	}

	if len(builds) == 0 {
		fmt.Println("No builds found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUILD\tREPO\tCOMMIT\tSTATE\tCREATED")
	for _, b := range builds {
		commit := b.CommitSHA
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Repo, commit, b.State, b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
