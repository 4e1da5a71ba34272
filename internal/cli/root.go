// Package cli defines the chatcli command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	configPath string
	provider   string
	model      string
}

// providerFlags are shared by every command that talks to a provider.
func providerFlags(opts *rootOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("provider", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (default is $CHATCLI_CONFIG or ./config.json)")
	fs.StringVarP(&opts.provider, "provider", "p", "", "provider: openai, gemini, claude or ollama (default: detected from API keys)")
	fs.StringVarP(&opts.model, "model", "m", "", "model identifier (default: provider's configured model)")
	return fs
}

// NewRootCommand builds the command tree. Running it without a subcommand starts a chat.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	chatOpts := &chatOptions{}

	root := &cobra.Command{
		Use:           "chatcli",
		Short:         "Chat with hosted LLMs from the terminal",
		Long:          "chatcli keeps a bounded conversation with an LLM provider, trimming old turns to fit the context window and tracking what each turn costs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, chatOpts)
		},
	}
	root.PersistentFlags().AddFlagSet(providerFlags(opts))
	root.Flags().AddFlagSet(chatFlags(chatOpts))

	root.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newClassifyCommand(opts),
		newCompareCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the command tree and reports errors on stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		return err
	}
	return nil
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "ERROR: %v\n", err)
}
