package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/congelados/vendedor/internal/config"
	"github.com/congelados/vendedor/internal/logger"
	"github.com/congelados/vendedor/internal/reply"
	"github.com/congelados/vendedor/internal/version"
)

type cliOptions struct {
	configPath string
	apiBaseURL string
	userID     string
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	defaultConfig := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}
	defaultUser := "cli-" + strings.TrimSpace(os.Getenv("USER"))
	if defaultUser == "cli-" {
		defaultUser = "cli"
	}

	root := &cobra.Command{
		Use:           "vendedor",
		Short:         "Talk to the ordering assistant over its HTTP API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "Path to config.toml")
	root.PersistentFlags().StringVar(&opts.apiBaseURL, "api-url", "", "API server base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&opts.userID, "user", defaultUser, "Customer id used for the session")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Interactive chat; type exit to quit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := opts.client()
				if err != nil {
					return err
				}
				return runInteractive(cmd.Context(), client, opts.userID, cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "send <message>",
			Short: "Send one message and print the reply",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client()
				if err != nil {
					return err
				}
				return sendOnce(cmd.Context(), client, opts.userID, strings.Join(args, " "), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Discard the current session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := opts.client()
				if err != nil {
					return err
				}
				msg, err := client.Reset(cmd.Context(), opts.userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show active sessions, cached intents and catalog size",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := opts.client()
				if err != nil {
					return err
				}
				st, err := client.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "usuarios activos: %d\n", st.ActiveSessions)
				fmt.Fprintf(out, "cache llm:        %d\n", st.CacheEntries)
				fmt.Fprintf(out, "productos:        %d\n", st.Products)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Vendedor CLI %s\n", version.GetInfo())
			},
		},
	)
	return root
}

// client resolves the API URL from the flag or the server address in the config file.
func (o *cliOptions) client() (*apiClient, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	base := strings.TrimSpace(o.apiBaseURL)
	if base == "" {
		base = defaultAPIBaseURL(cfg.Server.Addr)
	}
	if base == "" {
		return nil, fmt.Errorf("api url is required")
	}
	return newAPIClient(normalizeBaseURL(base), o.timeout), nil
}

func runInteractive(ctx context.Context, client *apiClient, userID string, in io.Reader, out io.Writer) error {
	reader := bufio.NewScanner(in)
	reader.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	fmt.Fprint(out, "Tú: ")
	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			fmt.Fprint(out, "Tú: ")
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit", "salir":
			return nil
		case "/reset":
			msg, err := client.Reset(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n\nTú: ", msg)
			continue
		}
		if err := sendOnce(ctx, client, userID, line, out); err != nil {
			return err
		}
		fmt.Fprint(out, "\nTú: ")
	}
	return reader.Err()
}

func sendOnce(ctx context.Context, client *apiClient, userID, text string, out io.Writer) error {
	resp, err := client.Send(ctx, userID, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Bot [%s/%s]: %s\n", resp.Estado, resp.Fase, reply.Format(resp.Respuesta, reply.ChannelPlain))
	return nil
}

func normalizeBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func defaultAPIBaseURL(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return normalizeBaseURL(trimmed)
	}
	if strings.HasPrefix(trimmed, ":") {
		return "http://127.0.0.1" + trimmed
	}
	return "http://" + trimmed
}
