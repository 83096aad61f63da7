package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix/internal/client"
	"github.com/raphaelgruber/helix/internal/models"
)

var (
	filesCategory string
	filesForce    bool
	filesOutput   string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List, download or delete filed items",
	Long: `List the metadata of every filed item, or manage a single one.

Examples:
  helix files                         # List everything
  helix files -c links                # Only links
  helix files download docs invoice   # Save docs/invoice.* locally
  helix files delete media standup    # Remove media/standup.*`,
	Args: cobra.NoArgs,
	RunE: runFilesList,
}

var filesDownloadCmd = &cobra.Command{
	Use:   "download <category> <name>",
	Short: "Download a filed item's content",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesDownload,
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <category> <name>",
	Short: "Delete a filed item and its sidecar",
	Long: `Delete a filed item together with its .meta sidecar.
Requires confirmation unless --force is used.`,
	Args: cobra.ExactArgs(2),
	RunE: runFilesDelete,
}

func init() {
	filesCmd.Flags().StringVarP(&filesCategory, "category", "c", "", "only list docs, media or links")
	filesDownloadCmd.Flags().StringVarP(&filesOutput, "output", "o", "", "output path (default: stored file name)")
	filesDeleteCmd.Flags().BoolVarP(&filesForce, "force", "f", false, "skip confirmation")

	filesCmd.AddCommand(filesDownloadCmd)
	filesCmd.AddCommand(filesDeleteCmd)
}

func parseCategory(s string) (models.Category, error) {
	cat, ok := models.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown category %q (use docs, media or links)", s)
	}
	return cat, nil
}

func runFilesList(cmd *cobra.Command, args []string) error {
	var only models.Category
	if filesCategory != "" {
		cat, err := parseCategory(filesCategory)
		if err != nil {
			return err
		}
		only = cat
	}

	all, err := apiClient.ProcessedFiles(cmd.Context())
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	total := 0
	for _, cat := range models.Categories {
		if only != "" && cat != only {
			continue
		}
		files := all[cat]
		if len(files) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", cat, len(files))
		for _, f := range files {
			fmt.Printf("  %-40s  %s\n", strings.TrimSuffix(filepath.Base(f.ResolvedName), ".meta"), f.OldName)
			if verbose && f.Summary != "" {
				fmt.Printf("    %s\n", f.Summary)
			}
			if len(f.Tags) > 0 {
				fmt.Printf("    tags: %s\n", strings.Join(f.Tags, ", "))
			}
		}
		total += len(files)
	}
	if total == 0 {
		fmt.Println("No files found")
	}
	return nil
}

func runFilesDownload(cmd *cobra.Command, args []string) error {
	cat, err := parseCategory(args[0])
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(".", ".helix-download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, err := apiClient.Download(cmd.Context(), cat, args[1], tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if client.IsNotFound(err) {
		return fmt.Errorf("file not found: %s/%s", cat, args[1])
	}
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	out := filesOutput
	if out == "" {
		out = filepath.Base(name)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	fmt.Printf("Saved %s\n", out)
	return nil
}

func runFilesDelete(cmd *cobra.Command, args []string) error {
	cat, err := parseCategory(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	if !filesForce {
		fmt.Printf("About to delete: %s/%s\n", cat, name)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	err = apiClient.DeleteFile(cmd.Context(), cat, name)
	if client.IsNotFound(err) {
		return fmt.Errorf("file not found: %s/%s", cat, name)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	fmt.Printf("Deleted %s/%s\n", cat, name)
	return nil
}
