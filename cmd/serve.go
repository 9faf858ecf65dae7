package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/device-reservation-agent/pkg/config"
	"github.com/tanpawarit/device-reservation-agent/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve the streaming chat, reservation decision and health endpoints.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		httpCfg, err := configx.New[server.Config]("HTTP")
		if err != nil {
			return fmt.Errorf("load http config: %w", err)
		}

		var engine server.Engine
		orch, err := buildEngine(ctx)
		switch {
		case errors.Is(err, errModelDisabled):
			log.Warn().Msg("LLM_API_KEY is not set; agent endpoints will answer 503")
		case err != nil:
			return err
		default:
			engine = orch
		}

		gin.SetMode(gin.ReleaseMode)
		return server.New(*httpCfg, engine).Run(ctx)
	},
}
