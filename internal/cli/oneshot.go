package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chatcli/internal/models"
	"chatcli/internal/service/ai"
	"chatcli/internal/service/assistant"
	"chatcli/internal/session"
)

// exercise is the part of the assistant service the one-shot commands use.
type exercise interface {
	Ask(ctx context.Context, prompt string, opts ai.Options) (*ai.Reply, error)
	Classify(ctx context.Context, review string) (*assistant.Classification, error)
	Compare(ctx context.Context, question string) (*assistant.Comparison, error)
}

// runExercise resolves the provider and hands an assistant to fn. Retry
// notices go straight to the command's output.
func runExercise(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, a *app, svc exercise, format session.Formatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	format := newStyledFormatter(out)
	a, err := loadApp(ctx, root, func(f string, args ...any) {
		format.Status(out, fmt.Sprintf(f, args...))
	})
	if err != nil {
		return fmt.Errorf("initialize LLM client: %w", err)
	}
	svc, err := assistant.NewAssistantService(a.gateway, a.provider)
	if err != nil {
		return err
	}
	format.Status(out, a.banner())
	return fn(ctx, a, svc, format)
}

func newAskCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single prompt with no history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExercise(cmd, root, func(ctx context.Context, a *app, svc exercise, format session.Formatter) error {
				reply, err := svc.Ask(ctx, strings.Join(args, " "), a.options())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				format.Assistant(out, reply.Text)
				printReplyCost(out, format, a, reply.Usage)
				return nil
			})
		},
	}
}

func newClassifyCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [review]",
		Short: "Label a review Positive or Negative from few-shot examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExercise(cmd, root, func(ctx context.Context, a *app, svc exercise, format session.Formatter) error {
				result, err := svc.Classify(ctx, strings.Join(args, " "))
				if result != nil {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "%s: %s\n", roleLabel(models.RoleAssistant), strings.TrimSpace(result.Raw))
					printReplyCost(out, format, a, result.Usage)
				}
				return err
			})
		},
	}
}

func newCompareCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare [question]",
		Short: "Ask a question zero-shot and step by step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExercise(cmd, root, func(ctx context.Context, a *app, svc exercise, format session.Formatter) error {
				result, err := svc.Compare(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "=== ZERO SHOT ===")
				fmt.Fprintln(out, result.ZeroShot.Text)
				printReplyCost(out, format, a, result.ZeroShot.Usage)
				fmt.Fprintln(out, "\n=== STEP BY STEP ===")
				fmt.Fprintln(out, result.StepByStep.Text)
				printReplyCost(out, format, a, result.StepByStep.Usage)
				return nil
			})
		},
	}
}

func printReplyCost(out io.Writer, format session.Formatter, a *app, usage models.Usage) {
	line := fmt.Sprintf("[usage] prompt=%d completion=%d total=%d",
		usage.PromptTokens, usage.CompletionTokens, usage.Total())
	if usage.Estimated {
		line += " (estimated)"
	}
	format.Status(out, line)
	c, err := a.pricing.Estimate(a.model, usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		format.Status(out, fmt.Sprintf("[cost] unavailable: %v", err))
		return
	}
	format.Status(out, fmt.Sprintf("[cost] $%s", c.StringFixed(6)))
}
