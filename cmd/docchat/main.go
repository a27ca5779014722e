package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docchat/internal/api"
	"docchat/internal/config"
	"docchat/internal/notify"
	"docchat/internal/service"
	"docchat/internal/tui"
	"docchat/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	configPath string
	baseURL    string
	logLevel   string

	cfg *config.Config
	svc *service.ChatService
)

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Chat with your documents from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Close()
		}
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if baseURL != "" {
			cfg.API.BaseURL = baseURL
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		if err := logger.Init(cfg.Log.Level, cfg.Log.Format, logOutput(cmd)); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		var opts []api.Option
		if cfg.API.Token != "" {
			opts = append(opts, api.WithToken(cfg.API.Token))
		}
		client := api.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout, opts...)
		svc = service.NewChatService(client, service.Options{
			MaxUploadBytes: cfg.Upload.MaxUploadBytes(),
		})
		return nil
	}
}

// logOutput keeps log lines off the screen while the TUI owns it.
func logOutput(cmd *cobra.Command) string {
	if cmd == rootCmd || cmd.Name() == "tui" {
		if cfg.Log.Output == "" || cfg.Log.Output == "stderr" || cfg.Log.Output == "stdout" {
			return "discard"
		}
	}
	return cfg.Log.Output
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	tray := notify.NewTray(cfg.Notify.DismissAfter)
	defer tray.Close()
	unsubscribe := svc.Subscribe(tray.Listener())
	defer unsubscribe()

	logger.Infof("connecting to %s", cfg.API.BaseURL)
	return tui.Run(cmd.Context(), svc, tray, tea.WithAltScreen())
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "document service URL, overrides api.base_url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(tuiCmd)
	addScriptCommands(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
