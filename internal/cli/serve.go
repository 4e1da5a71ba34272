package cli

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"chatcli/internal/api"
	"chatcli/internal/session"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		addr   string
		system string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose one chat session over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, root, log.Printf)
			if err != nil {
				return fmt.Errorf("initialize LLM client: %w", err)
			}

			opts := []session.Option{session.WithOutput(cmd.OutOrStdout())}
			var ledger api.TurnLedger
			l, db, err := a.openLedger()
			if err != nil {
				return fmt.Errorf("open turn ledger: %w", err)
			}
			if l != nil {
				defer db.Close()
				opts = append(opts, session.WithRecorder(l))
				ledger = l
			}

			sess := session.New(a.gateway, a.counter,
				a.sessionConfig(lo.CoalesceOrEmpty(system, a.cfg.Chat.SystemPrompt), ""), opts...)
			defer sess.Close()

			router := gin.Default()
			api.NewHandler(sess, ledger).RegisterRoutes(router)

			if addr == "" {
				addr = a.cfg.BasicConfig.ServerAddress
			}
			log.Printf("%s session %s listening on %s", a.banner(), sess.ID(), addr)
			return router.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: basic_config.server_address)")
	cmd.Flags().StringVar(&system, "system", "", "system prompt for the served session")
	return cmd
}
