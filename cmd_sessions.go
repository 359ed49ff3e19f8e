package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/services"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and resolve stored sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsResolveCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			sm := services.NewSessionManager(store, config.NewHolder(cfg))
			summaries, err := sm.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read sessions from %s: %w", store.Path(), err)
			}
			printSessions(cmd.OutOrStdout(), summaries, time.Now())
			return nil
		},
	}
}

func printSessions(w io.Writer, summaries []services.SessionSummary, now time.Time) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	fmt.Fprintf(w, "%-36s %-36s %-10s %-6s %s\n", "KEY", "SESSION", "AGE", "FRESH", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range summaries {
		fmt.Fprintf(w, "%-36s %-36s %-10s %-6v %s\n",
			s.Key, s.SessionID, now.Sub(s.UpdatedAt).Round(time.Second), s.Fresh, s.DisplayName)
	}
}

func newSessionsResolveCmd() *cobra.Command {
	var (
		msg        models.MsgContext
		surface    string
		authorized bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve and persist the session for one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(msg.From) == "" {
				return fmt.Errorf("--from is required")
			}
			msg.Surface = models.ParseSurface(surface)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("authorized") {
				authorized = cfg.CommandsAuthorized()
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			sm := services.NewSessionManager(store, config.NewHolder(cfg))
			res, resolveErr := sm.Resolve(cmd.Context(), &msg, authorized)
			if res != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					log.Printf("⚠️  Failed to print resolution: %v", err)
				}
			}
			return resolveErr
		},
	}

	f := cmd.Flags()
	f.StringVar(&msg.From, "from", "", "Sender address, e.g. whatsapp:+15551234567")
	f.StringVar(&msg.To, "to", "", "Recipient address")
	f.StringVar(&msg.Body, "body", "", "Message text")
	f.StringVar(&msg.SenderE164, "sender", "", "Sender phone number")
	f.StringVar(&surface, "surface", "", "Messaging surface (whatsapp, telegram, discord, slack, ...)")
	f.StringVar(&msg.ChatType, "chat-type", "", "Chat type: direct, group or room")
	f.StringVar(&msg.GroupSubject, "subject", "", "Group subject")
	f.StringVar(&msg.GroupRoom, "room", "", "Group room")
	f.StringVar(&msg.GroupSpace, "space", "", "Group space")
	f.BoolVar(&authorized, "authorized", true, "Platform-level command authorization (default from commands.authorized)")
	return cmd
}
