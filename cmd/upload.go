package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/ingestion"
	"github.com/meysamhadeli/kbchat/ingestion/models"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// uploadCmd: kbchat upload [paths...]
var uploadCmd = &cobra.Command{
	Use:   "upload [paths...]",
	Short: "Upload files or directories to a Dify knowledge base.",
	Long: `The 'upload' command scans the given files and directories with the configured include and
exclude patterns, splits files that exceed the chunk budget and creates one document per piece in
the knowledge base. Pieces that were already uploaded with the same content are skipped unless
--force is given. Without arguments the current directory is uploaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		if err := requireRemote(rootDependencies); err != nil {
			return err
		}

		knowledgeBaseID, _ := cmd.Flags().GetString("kb")
		if knowledgeBaseID == "" {
			knowledgeBaseID = rootDependencies.Config.Dify.KnowledgeBaseID
		}
		force, _ := cmd.Flags().GetBool("force")

		if len(args) == 0 {
			args = []string{"."}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return uploadAndReport(ctx, rootDependencies, args, knowledgeBaseID, force)
	},
}

func init() {
	uploadCmd.Flags().String("kb", "", "Knowledge base id to upload to (defaults to dify.knowledge_base_id)")
	uploadCmd.Flags().BoolP("force", "f", false, "Upload pieces even when the ledger says they were already uploaded")

	rootCmd.AddCommand(uploadCmd)
}

// uploadAndReport uploads paths with a progress bar and prints a summary of the results.
func uploadAndReport(ctx context.Context, deps *RootDependencies, paths []string, knowledgeBaseID string, force bool) error {
	if knowledgeBaseID == "" {
		return fmt.Errorf("%w, pass --kb or use /kb use <id>", ingestion.ErrKnowledgeBaseNotSelected)
	}

	var bar *pterm.ProgressbarPrinter
	onProgress := func(done int, total int, result models.UploadResult) {
		if bar == nil {
			bar, _ = pterm.DefaultProgressbar.WithTotal(total).WithTitle("Uploading").WithRemoveWhenDone(true).Start()
		}
		bar.UpdateTitle(result.Name)
		bar.Increment()
	}

	results, err := deps.Uploader.Upload(ctx, paths, knowledgeBaseID, ingestion.Options{Force: force, OnProgress: onProgress})
	if bar != nil {
		_, _ = bar.Stop()
	}

	printUploadResults(results)
	return err
}

func printUploadResults(results []models.UploadResult) {
	for _, result := range results {
		if result.Status == models.StatusFailed {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("❌ %s: %v", result.Name, result.Err)))
		}
	}

	summary := models.Summarize(results)
	if len(results) == 0 {
		fmt.Println(lipgloss.Yellow.Render("No files to upload."))
		return
	}

	line := fmt.Sprintf("Uploaded: %d - Skipped: %d - Failed: %d - Tokens: %d", summary.Uploaded, summary.Skipped, summary.Failed, summary.Tokens)
	fmt.Println(lipgloss.BoxStyle.Render(line))
}
