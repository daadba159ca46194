package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meysamhadeli/kbchat/chat"
	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/ingestion"
	"github.com/meysamhadeli/kbchat/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const chatHelp = `/kb                 List knowledge bases
/kb use <id>        Select the knowledge base used for questions and uploads
/upload <paths...>  Upload files or directories to the knowledge base
/attach <paths...>  Attach local files to the following questions
/detach             Remove attached files
/scan [path]        Show what would be uploaded from a path
/ls <partial>       Complete a file path
/token              Token information
/clear-history      Clear history of chat from session
/clear              Clear screen
/exit               Exit from kbchat`

// chatCmd: kbchat chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions answered from a Dify knowledge base in an interactive session.",
	Long: `The 'chat' subcommand starts an interactive session. Every question is searched in the selected
knowledge base, the best matching segments are sent with the question to the chat model and the answer
is streamed back with syntax highlighting. Local files can be attached to a question or uploaded to
the knowledge base without leaving the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		if err := requireRemote(rootDependencies); err != nil {
			return err
		}
		return handleChatCommand(rootDependencies)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

type chatLoop struct {
	deps     *RootDependencies
	session  *chat.Session
	renderer *utils.MarkdownRenderer
	reader   *bufio.Reader
	spinner  *pterm.SpinnerPrinter
}

func handleChatCommand(rootDependencies *RootDependencies) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go utils.GracefulShutdown(ctx, cancel, func() {
		rootDependencies.ChatHistory.ClearHistory()
		rootDependencies.TokenManagement.ClearToken()
		_ = rootDependencies.Logger.Sync()
	})

	loop := &chatLoop{
		deps: rootDependencies,
		session: chat.NewSession(
			rootDependencies.CurrentChatProvider,
			rootDependencies.KnowledgeBase,
			chat.NewPromptBuilder(rootDependencies.ContextManager),
			rootDependencies.ChatHistory,
			rootDependencies.Config.Dify.KnowledgeBaseID,
			rootDependencies.Logger.Named("chat"),
		),
		renderer: utils.NewMarkdownRenderer(os.Stdout, rootDependencies.Config.Theme),
		reader:   bufio.NewReader(os.Stdin),
		spinner: pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
			WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
			WithDelay(100).WithRemoveWhenDone(true),
	}

	fmt.Println(lipgloss.BoxStyle.Render("/help  Help for chat commands"))
	if loop.session.KnowledgeBaseID() == "" {
		fmt.Println(lipgloss.Yellow.Render("No knowledge base selected, use /kb to list them and /kb use <id> to select one."))
	} else {
		fmt.Println(lipgloss.Info.Render(fmt.Sprintf("Knowledge base: %s", loop.session.KnowledgeBaseID())))
	}

	for {
		userInput, err := utils.InputPromptWithContext(ctx, loop.reader, os.Stdout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println(lipgloss.Yellow.Render("🔄 Exiting..."))
				return nil
			}
			if errors.Is(err, utils.ErrInputClosed) {
				return nil
			}
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			continue
		}

		if userInput == "" {
			continue
		}

		if strings.HasPrefix(userInput, "/") {
			if exit := loop.handleCommand(ctx, userInput); exit {
				return nil
			}
			continue
		}

		if err := loop.ask(ctx, userInput); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		}
		loop.displayTokens()
	}
}

func (loop *chatLoop) displayTokens() {
	loop.deps.TokenManagement.DisplayTokens(loop.deps.Config.AIProviderConfig.Provider, loop.deps.Config.AIProviderConfig.Model)
}

func (loop *chatLoop) ask(ctx context.Context, userInput string) error {
	askCtx, cancelAsk := context.WithCancel(ctx)
	defer cancelAsk()

	spinnerSearch, _ := loop.spinner.Start("Searching the knowledge base...")
	responses, err := loop.session.Ask(askCtx, userInput)
	_ = spinnerSearch.Stop()
	fmt.Print("\r")
	if err != nil {
		if errors.Is(err, chat.ErrNoKnowledgeBase) {
			return fmt.Errorf("%w, use /kb to list knowledge bases", err)
		}
		return err
	}

	// an early return stops the provider and lets the stream close
	defer func() {
		cancelAsk()
		for range responses {
		}
	}()

	spinnerAI, _ := loop.spinner.Start("AI is thinking...")
	thinking := true
	stopThinking := func() {
		if thinking {
			_ = spinnerAI.Stop()
			fmt.Print("\r")
			thinking = false
		}
	}
	defer stopThinking()

	loop.renderer.Reset()
	for response := range responses {
		if response.Err != nil {
			stopThinking()
			return response.Err
		}
		if response.Done {
			stopThinking()
			fmt.Println()
			continue
		}
		if response.Content == "" {
			continue
		}

		stopThinking()
		if err := loop.renderer.RenderAndPrintMarkdownWithContext(ctx, response.Content); err != nil {
			if errors.Is(err, context.Canceled) {
				return errors.New("output cancelled by user")
			}
			return err
		}
	}

	return nil
}

// handleCommand runs a slash command and reports whether the session should end.
func (loop *chatLoop) handleCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch fields[0] {
	case "/help":
		fmt.Println(lipgloss.BoxStyle.Render(chatHelp))
	case "/clear":
		fmt.Print("\033[2J\033[H")
	case "/exit":
		return true
	case "/token":
		loop.displayTokens()
	case "/clear-history":
		loop.deps.ChatHistory.ClearHistory()
		fmt.Println(lipgloss.Green.Render("✔️ Chat history cleared."))
	case "/kb":
		loop.knowledgeBases(ctx, fields[1:])
	case "/upload":
		loop.upload(ctx, rest)
	case "/attach":
		loop.attach(ctx, rest)
	case "/detach":
		loop.session.ClearAttachments()
		fmt.Println(lipgloss.Green.Render("✔️ Attached files removed."))
	case "/scan":
		target := rest
		if target == "" {
			target = "."
		}
		if err := scanAndRender(ctx, loop.deps, ingestion.ExpandHome(target)); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		}
	case "/ls":
		loop.listPaths(rest)
	default:
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Unknown command '%s', type /help to see the available commands.", fields[0])))
	}

	return false
}

func (loop *chatLoop) knowledgeBases(ctx context.Context, args []string) {
	if len(args) >= 2 && args[0] == "use" {
		loop.useKnowledgeBase(ctx, args[1])
		return
	}
	if len(args) > 0 {
		fmt.Println(lipgloss.Yellow.Render("Usage: /kb or /kb use <id>"))
		return
	}
	if err := listKnowledgeBases(ctx, loop.deps, loop.session.KnowledgeBaseID()); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
	}
}

func (loop *chatLoop) useKnowledgeBase(ctx context.Context, id string) {
	datasets, err := loop.deps.KnowledgeBase.ListDatasets(ctx, "", 1, 100)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}

	for _, dataset := range datasets.Data {
		if dataset.ID == id || strings.EqualFold(dataset.Name, id) {
			loop.session.SetKnowledgeBase(dataset.ID)
			notice := fmt.Sprintf("Knowledge base switched to %s (%s)", dataset.Name, dataset.ID)
			loop.deps.ChatHistory.AddSystemMessage(notice)
			fmt.Println(lipgloss.Green.Render("✔️ " + notice))
			return
		}
	}

	fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Knowledge base '%s' not found, use /kb to list them.", id)))
}

func (loop *chatLoop) upload(ctx context.Context, rest string) {
	paths := ingestion.ExtractFilePaths(rest)
	if len(paths) == 0 {
		paths = strings.Fields(rest)
	}
	if len(paths) == 0 {
		fmt.Println(lipgloss.Yellow.Render("Usage: /upload <paths...>"))
		return
	}

	if err := uploadAndReport(ctx, loop.deps, paths, loop.session.KnowledgeBaseID(), false); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
	}
}

func (loop *chatLoop) attach(ctx context.Context, rest string) {
	paths := strings.Fields(rest)
	if len(paths) == 0 {
		attached := loop.session.Attached()
		if len(attached) == 0 {
			fmt.Println(lipgloss.Yellow.Render("No files attached. Usage: /attach <paths...>"))
			return
		}
		for _, file := range attached {
			fmt.Println(lipgloss.Gray.Render("  " + file.RelativePath))
		}
		return
	}

	for _, path := range paths {
		scan, err := loop.deps.Scanner.ScanPath(ctx, ingestion.ExpandHome(path))
		if err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			continue
		}
		count := loop.session.Attach(scan.Records()...)
		loop.deps.Logger.Debug("attached files", zap.String("path", path), zap.Int("attached", count))
	}

	analysis := loop.deps.ContextManager.AnalyzeFiles(loop.session.Attached())
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✔️ %d file(s) attached, about %d tokens (%s).", len(analysis.Files), analysis.TotalTokens, analysis.Strategy)))
	if analysis.Warning != "" {
		fmt.Println(lipgloss.Yellow.Render(analysis.Warning))
	}
}

func (loop *chatLoop) listPaths(partial string) {
	home, _ := os.UserHomeDir()
	suggestions := utils.SuggestPaths(partial, loop.deps.Cwd, home, loop.deps.Matcher)
	if len(suggestions) == 0 {
		fmt.Println(lipgloss.Gray.Render("No matching paths."))
		return
	}
	for _, suggestion := range suggestions {
		fmt.Println(lipgloss.Info.Render("  " + suggestion))
	}
}
