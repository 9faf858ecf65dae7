package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/device-reservation-agent/pkg/config"
	logx "github.com/tanpawarit/device-reservation-agent/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "reservation-agent",
	Short:         "Device reservation assistant",
	Long:          `A tool-calling assistant that checks, books and cancels hourly slots of a shared device.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)
		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return fmt.Errorf("load log config: %w", err)
		}
		logx.Init(*logCfg)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (defaults to ./.env when present)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}
