package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/sessiongate/internal/config"
)

// Global flags
var (
	configPath string
	envFiles   []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessiongate",
		Short: "Conversation session gateway for messaging bots",
		Long: `sessiongate decides which conversation session an inbound chat message
belongs to, who may reset it, and persists the session document.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file for local development
			if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
				config.LoadEnvFiles(envFiles...)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $CONFIG_PATH or "+config.DefaultConfigPath+")")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load (default .env, environments/.env.development)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSessionsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}
