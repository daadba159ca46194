package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/context_manager"
	"github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/ingestion"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// scanCmd: kbchat scan [path]
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Show which files would be uploaded from a path.",
	Long: `The 'scan' command walks a file or directory with the configured include and exclude patterns and
ignore files, and prints the accepted files with their size, language and estimated tokens. Nothing is
uploaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}

		target := "."
		if len(args) == 1 {
			target = args[0]
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return scanAsJSON(cmd.Context(), rootDependencies, ingestion.ExpandHome(target))
		}
		return scanAndRender(cmd.Context(), rootDependencies, ingestion.ExpandHome(target))
	},
}

func init() {
	scanCmd.Flags().Bool("json", false, "Print the scan result as JSON")

	rootCmd.AddCommand(scanCmd)
}

func scanAsJSON(ctx context.Context, deps *RootDependencies, target string) error {
	scan, err := deps.Scanner.ScanPath(ctx, target)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if scan.File != nil {
		return encoder.Encode(scan.File)
	}
	return encoder.Encode(scan.Directory)
}

func scanAndRender(ctx context.Context, deps *RootDependencies, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	spinner, _ := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true).Start("Scanning files...")
	scan, err := deps.Scanner.ScanPath(ctx, target)
	_ = spinner.Stop()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	if scan.File != nil {
		return renderFiles([]models.FileRecord{*scan.File})
	}

	result := scan.Directory
	if err := renderFiles(result.Files); err != nil {
		return err
	}

	fmt.Println(lipgloss.BoxStyle.Render(fmt.Sprintf("Files: %d - Size: %.2fKB - Estimated tokens: %d - Skipped: %d\nLanguages: %v",
		result.TotalFiles, float64(result.TotalSizeBytes)/1024, result.EstimatedTokens, result.SkippedFiles, result.Languages)))

	for _, file := range result.LargeFiles {
		fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Large file: %s (%.2fKB)", file.RelativePath, float64(file.SizeBytes)/1024)))
	}
	if result.Warning != "" {
		fmt.Println(lipgloss.Yellow.Render(result.Warning))
	}
	return nil
}

func renderFiles(files []models.FileRecord) error {
	if len(files) == 0 {
		fmt.Println(lipgloss.Yellow.Render("No matching files."))
		return nil
	}

	data := pterm.TableData{{"File", "Language", "Size (KB)", "Tokens"}}
	for _, file := range files {
		data = append(data, []string{
			file.RelativePath,
			file.Language,
			fmt.Sprintf("%.2f", float64(file.SizeBytes)/1024),
			strconv.Itoa(context_manager.EstimateTokens(file.Content)),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
