package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// resetLedgerCmd represents the reset-ledger command
var resetLedgerCmd = &cobra.Command{
	Use:   "reset-ledger",
	Short: "Forget which documents were already uploaded",
	Long: `The 'reset-ledger' command removes the upload ledger kept in the user cache directory.
The ledger remembers every piece uploaded to a knowledge base so unchanged files are not uploaded
twice. After a reset the next upload sends every piece again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		stats, _ := cmd.Flags().GetBool("stats")

		return handleResetLedgerCommand(cmd, force, stats)
	},
}

func init() {
	resetLedgerCmd.Flags().BoolP("force", "f", false, "Reset the ledger without confirmation")
	resetLedgerCmd.Flags().BoolP("stats", "s", false, "Only show ledger statistics")

	rootCmd.AddCommand(resetLedgerCmd)
}

func handleResetLedgerCommand(cmd *cobra.Command, force bool, showStats bool) error {
	rootDependencies, err := handleRootCommand(cmd)
	if err != nil {
		return err
	}

	if rootDependencies.Ledger == nil {
		fmt.Println(lipgloss.Yellow.Render("Ledger is disabled. Nothing to reset."))
		return nil
	}

	if showStats {
		stats, err := rootDependencies.Ledger.Stats()
		if err != nil {
			return fmt.Errorf("could not read ledger statistics: %w", err)
		}

		fmt.Println(lipgloss.Info.Render("Ledger Statistics:"))
		fmt.Printf("  Ledger Directory: %s\n", stats.Dir)
		fmt.Printf("  Uploaded Documents: %d\n", stats.Entries)
		fmt.Printf("  Total Size: %.2f KB\n", float64(stats.TotalSizeBytes)/1024)
		if stats.Entries > 0 {
			fmt.Printf("  Oldest Upload: %s\n", stats.Oldest.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Newest Upload: %s\n", stats.Newest.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	if !force {
		accepted, err := utils.ConfirmPrompt("Are you sure you want to reset the upload ledger?", bufio.NewReader(os.Stdin), os.Stdout)
		if err != nil {
			return err
		}
		if !accepted {
			fmt.Println(lipgloss.Yellow.Render("Ledger reset cancelled."))
			return nil
		}
	}

	spinner, _ := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true).Start("Resetting upload ledger...")

	removed, err := rootDependencies.Ledger.Clear()
	_ = spinner.Stop()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("error resetting ledger: %w", err)
	}

	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Upload ledger has been reset (%d entries removed).", removed)))
	return nil
}
