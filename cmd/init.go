package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/spf13/cobra"
)

// initCmd: kbchat init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a kbchat-config.yaml with default settings in the current directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get the working directory: %w", err)
		}

		path := filepath.Join(cwd, config.ConfigFileName+".yaml")
		created, err := config.WriteDefaultConfig(path)
		if err != nil {
			return err
		}

		if !created {
			fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("%s already exists, nothing was changed.", path)))
			return nil
		}

		fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✔️ Created %s, add your API keys and knowledge base id to it.", path)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
