package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"chatcli/internal/service/ai"
	"chatcli/internal/service/assistant"
	"chatcli/internal/session"
	"chatcli/internal/storage"
)

type chatOptions struct {
	persona     bool
	system      string
	contextFile string
}

func chatFlags(opts *chatOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	fs.BoolVar(&opts.persona, "persona", false, "start with the Linux terminal expert system prompt")
	fs.StringVar(&opts.system, "system", "", "custom system prompt (overrides --persona and chat.system_prompt)")
	fs.StringVar(&opts.contextFile, "context-file", "", "document to load as conversation context")
	return fs
}

func newChatCommand(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, root, opts)
		},
	}
	cmd.Flags().AddFlagSet(chatFlags(opts))
	return cmd
}

// runChat reports initialization problems and returns nil, so the REPL exits 0.
func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	format := newStyledFormatter(out)

	var sess *session.Session
	logf := func(f string, args ...any) {
		if sess != nil {
			sess.Logf(f, args...)
			return
		}
		format.Status(out, fmt.Sprintf(f, args...))
	}

	a, err := loadApp(ctx, root, logf)
	if err != nil {
		fmt.Fprintf(out, "Error initializing LLM client: %v\n", err)
		return nil
	}

	systemPrompt := resolveSystemPrompt(opts, a.cfg.Chat.SystemPrompt)
	contextDoc, err := loadContextDocument(ctx, lo.CoalesceOrEmpty(opts.contextFile, a.cfg.Chat.ContextFile))
	if err != nil {
		fmt.Fprintf(out, "Error initializing LLM client: %v\n", err)
		return nil
	}

	sessOpts := []session.Option{session.WithOutput(out), session.WithFormatter(format)}
	ledger, db, err := a.openLedger()
	if err != nil {
		log.Printf("turn ledger disabled: %v", err)
	} else if ledger != nil {
		defer db.Close()
		sessOpts = append(sessOpts, session.WithRecorder(ledger))
	}
	sess = session.New(a.gateway, a.counter, a.sessionConfig(systemPrompt, contextDoc), sessOpts...)

	fmt.Fprintln(out, a.banner())
	fmt.Fprintln(out, "Type 'quit', 'exit', or '/quit' to end the conversation.")
	fmt.Fprintln(out)

	reader, closeReader := newLineReader(cmd.InOrStdin(), out)
	runErr := sess.Run(ctx, reader)
	closeReader()

	printSessionSummary(ctx, out, format, sess, ledger)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func resolveSystemPrompt(opts *chatOptions, configured string) string {
	switch {
	case opts.system != "":
		return opts.system
	case opts.persona:
		return assistant.SystemPrompt
	default:
		return configured
	}
}

func loadContextDocument(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	loader, err := ai.NewDocumentLoader(ctx)
	if err != nil {
		return "", err
	}
	return loader.Load(ctx, path)
}

func printSessionSummary(ctx context.Context, out io.Writer, format session.Formatter, sess *session.Session, ledger *storage.Ledger) {
	stats := sess.Stats()
	turns, prompt, completion, total := stats.Turns, stats.PromptTokens, stats.CompletionTokens, stats.Cost
	if ledger != nil {
		sum, err := ledger.Summary(ctx, sess.ID())
		if err != nil {
			log.Printf("ledger summary: %v", err)
		} else {
			turns, prompt, completion, total = sum.Turns, sum.PromptTokens, sum.CompletionTokens, sum.Cost
		}
	}
	format.Status(out, fmt.Sprintf("[session] %d turns, %d prompt / %d completion tokens, $%s",
		turns, prompt, completion, total.StringFixed(6)))
}
