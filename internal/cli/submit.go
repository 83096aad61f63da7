package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var submitWait bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files as one batch",
	Long: `Upload local files as one batch. The server extracts, classifies and files
each one; failures are isolated per file.

Examples:
  helix upload report.pdf notes.md
  helix upload --wait recording.mp3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var linksCmd = &cobra.Command{
	Use:   "links <url>...",
	Short: "Submit links as one batch",
	Long: `Submit web links as one batch. GitHub repositories, Wikipedia articles,
YouTube videos and X posts get dedicated handling; everything else is read
as a web page.

Examples:
  helix links https://github.com/spf13/cobra
  helix links --wait https://en.wikipedia.org/wiki/Go_(programming_language)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLinks,
}

func init() {
	for _, c := range []*cobra.Command{uploadCmd, linksCmd} {
		c.Flags().BoolVarP(&submitWait, "wait", "w", false, "follow progress until the batch completes")
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	for _, p := range args {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", p)
		}
	}

	ctx := cmd.Context()
	id, err := apiClient.Upload(ctx, args)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return submitted(ctx, id, len(args))
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := apiClient.ProcessURLs(ctx, args)
	if err != nil {
		return fmt.Errorf("submit links: %w", err)
	}
	return submitted(ctx, id, len(args))
}

func submitted(ctx context.Context, id string, n int) error {
	if !submitWait {
		fmt.Printf("Batch %s started with %d item(s).\n", id, n)
		fmt.Printf("Use 'helix status %s' to check progress.\n", id)
		return nil
	}
	debugf("watching batch %s", id)
	return RunBatchProgress(ctx, apiClient, id, n)
}
