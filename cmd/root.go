package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/meysamhadeli/kbchat/chat"
	chat_contracts "github.com/meysamhadeli/kbchat/chat/contracts"
	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/context_manager"
	cm_contracts "github.com/meysamhadeli/kbchat/context_manager/contracts"
	"github.com/meysamhadeli/kbchat/file_scanner"
	scanner_contracts "github.com/meysamhadeli/kbchat/file_scanner/contracts"
	"github.com/meysamhadeli/kbchat/ingestion"
	"github.com/meysamhadeli/kbchat/logging"
	"github.com/meysamhadeli/kbchat/providers"
	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/dify"
	"github.com/meysamhadeli/kbchat/token_management"
	contracts_token "github.com/meysamhadeli/kbchat/token_management/contracts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootDependencies holds every collaborator a subcommand may need.
type RootDependencies struct {
	Config              *config.Config
	Cwd                 string
	Logger              *zap.Logger
	TokenManagement     contracts_token.ITokenManagement
	ChatHistory         chat_contracts.IChatHistory
	Scanner             scanner_contracts.IFileScanner
	Matcher             *file_scanner.PatternMatcher
	ContextManager      cm_contracts.IContextManager
	KnowledgeBase       contracts.IKnowledgeBase
	CurrentChatProvider contracts.IChatAIProvider
	Ledger              *ingestion.Ledger
	Uploader            *ingestion.Uploader
}

var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "Chat with a Dify knowledge base and upload local files to it from the terminal.",
	Long: `kbchat is a terminal client for Dify knowledge bases. It answers questions from the documents
stored in a knowledge base, streams the answer from an OpenAI compatible model and uploads local files
or whole directories, split into pieces that fit the configured token budget.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version, _ := cmd.Flags().GetBool("version"); version {
			fmt.Println(lipgloss.BlueSky.Render(fmt.Sprintf("kbchat version %s", config.DefaultConfig.Version)))
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, lipgloss.Red.Render(err.Error()))
		os.Exit(1)
	}
}

func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get the working directory: %w", err)
	}

	cfg, err := config.LoadConfigs(cmd.Root(), cwd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFile != "" {
		logger.Debug("loaded configuration", zap.String("file", cfg.ConfigFile))
	}

	deps := &RootDependencies{
		Config:          cfg,
		Cwd:             cwd,
		Logger:          logger,
		TokenManagement: token_management.NewTokenManager(),
		ChatHistory:     chat.NewChatHistory(chat.DefaultHistoryExchanges),
	}

	deps.Matcher, err = file_scanner.NewPatternMatcher(cfg.Scan.IncludePatterns, cfg.Scan.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	deps.Scanner, err = file_scanner.NewFileScanner(*cfg.Scan, cwd, logger.Named("scanner"))
	if err != nil {
		return nil, err
	}

	deps.ContextManager, err = context_manager.NewContextManager(*cfg.Context)
	if err != nil {
		return nil, err
	}

	deps.KnowledgeBase = dify.NewClient(cfg.Dify.BaseURL, cfg.Dify.ApiKey, time.Duration(cfg.Dify.TimeoutSeconds)*time.Second)

	deps.CurrentChatProvider, err = providers.NewChatProvider(cfg.AIProviderConfig, deps.TokenManagement)
	if err != nil {
		return nil, err
	}

	deps.Ledger, err = ingestion.NewLedger("")
	if err != nil {
		logger.Warn("upload ledger disabled", zap.Error(err))
	}

	deps.Uploader = ingestion.NewUploader(deps.Scanner, deps.ContextManager, deps.KnowledgeBase, deps.Ledger, logger.Named("uploader"))

	return deps, nil
}

// requireRemote checks the API keys needed by commands that talk to Dify or the chat model.
func requireRemote(deps *RootDependencies) error {
	if err := deps.Config.Validate(); err != nil {
		return fmt.Errorf("%w\nrun 'kbchat init' to create %s.yaml, or set the environment variables", err, config.ConfigFileName)
	}
	return nil
}
