package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix/internal/client"
	"github.com/raphaelgruber/helix/internal/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [batch-id]",
	Short: "List recent batches or inspect one",
	Long: `List your most recent batches or inspect a specific batch by ID.

Examples:
  helix status             # List recent batches
  helix status -n 20       # List the last 20
  helix status 3f2a...     # Show one batch item by item`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 5, "number of batches to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 1 {
		b, err := apiClient.GetBatch(ctx, args[0])
		if client.IsNotFound(err) {
			return fmt.Errorf("batch not found: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("get batch: %w", err)
		}
		printBatch(*b)
		return nil
	}

	batches, err := apiClient.RecentBatches(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}
	if len(batches) == 0 {
		fmt.Println("No batches found")
		return nil
	}

	fmt.Printf("%-32s  %-10s  %-8s  %s\n", "ID", "STATUS", "ITEMS", "STARTED")
	fmt.Println("--------------------------------------------------------------------------")
	for _, b := range batches {
		fmt.Printf("%-32s  %-10s  %-8s  %s\n", b.ID, b.Status.Kind,
			fmt.Sprintf("%d/%d", b.Resolved(), len(b.Items)), b.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func printBatch(b models.Batch) {
	fmt.Printf("Batch: %s\n", b.ID)
	fmt.Printf("  Status: %s\n", b.Status.Kind)
	if b.Status.Message != "" {
		fmt.Printf("  Message: %s\n", b.Status.Message)
	}
	fmt.Printf("  Started: %s\n", b.CreatedAt.Local().Format(time.RFC3339))
	if b.FinishedAt != nil {
		fmt.Printf("  Finished: %s\n", b.FinishedAt.Local().Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", b.FinishedAt.Sub(b.CreatedAt).Round(time.Second))
	}

	fmt.Printf("\nItems (%d/%d filed):\n", b.Resolved(), len(b.Items))
	for _, it := range b.Items {
		fmt.Printf("  %s\n", itemLine(b, it))
	}
}

// itemLine renders one item. An unresolved item of a completed batch failed.
func itemLine(b models.Batch, it models.ItemRecord) string {
	switch {
	case it.ResolvedName != "":
		return fmt.Sprintf("%s -> %s", it.OriginalName, it.ResolvedName)
	case b.Completed():
		return fmt.Sprintf("%s (failed)", it.OriginalName)
	default:
		return fmt.Sprintf("%s (pending)", it.OriginalName)
	}
}
