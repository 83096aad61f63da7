package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := apiClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Uptime: %s\n\n", (time.Duration(snap.UptimeSeconds) * time.Second).String())
		fmt.Printf("Batches: %d started, %d completed\n", snap.BatchesStarted, snap.BatchesCompleted)
		fmt.Printf("Items:   %d filed\n", snap.ItemsSucceeded)

		stages := make([]string, 0, len(snap.ItemsFailed))
		for stage := range snap.ItemsFailed {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		for _, stage := range stages {
			fmt.Printf("         %d failed at %s\n", snap.ItemsFailed[stage], stage)
		}
		if snap.StoreFailures > 0 {
			fmt.Printf("Store:   %d update failures\n", snap.StoreFailures)
		}

		fmt.Println()
		printOp("extract", snap.Extract)
		printOp("classify", snap.Classify)
		printOp("place", snap.Place)
		printOp("store", snap.StoreUpdate)
		return nil
	},
}

func printOp(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	line := fmt.Sprintf("%-9s %5d calls  avg %.0fms  min %dms  max %dms",
		name+":", op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
		line += fmt.Sprintf("  tokens %d in / %d out", *op.TotalInputTokens, *op.TotalOutputTokens)
	}
	fmt.Println(line)
}
