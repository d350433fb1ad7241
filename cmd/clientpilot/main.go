package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clientpilot/internal/app"
	"clientpilot/internal/config"
	"clientpilot/internal/domain"
	"clientpilot/internal/repo"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "clientpilot",
	Short: "ClientPilot CLI",
	Long: `ClientPilot tracks freelance clients, their projects and deliverables, and
drafts scopes, risk reports and client updates with an AI backend.

Projects move active -> on_hold -> completed; deliverables move
planned -> in_progress <-> blocked -> completed. Every AI call is recorded as
an agent run with ordered steps (see 'clientpilot runs').`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", config.DefaultPath, "config file")
	pf.Bool("json", false, "output JSON")
	pf.StringP("user", "u", "", "acting user (id, username or email)")
	pf.String("db", "", "database path (overrides config)")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("json", pf.Lookup("json"))
	_ = viper.BindPFlag("CLIENTPILOT_USER", pf.Lookup("user"))
	_ = viper.BindPFlag("CLIENTPILOT_DB", pf.Lookup("db"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(deliverableCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(aiCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(eventsCmd())
}

// envLookup reads settings through viper so flags bound to env keys and
// the process environment resolve the same way.
func envLookup(key string) (string, bool) {
	if !viper.IsSet(key) {
		return "", false
	}
	return viper.GetString(key), true
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(envLookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withUser resolves --user (or CLIENTPILOT_USER) before running fn.
func withUser(ctx context.Context, fn func(context.Context, *app.App, domain.User) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		ref := strings.TrimSpace(viper.GetString("CLIENTPILOT_USER"))
		if ref == "" {
			return errors.New("--user is required (or set CLIENTPILOT_USER)")
		}
		u, err := resolveUser(ctx, a, ref)
		if err != nil {
			return err
		}
		return fn(ctx, a, u)
	})
}

func resolveUser(ctx context.Context, a *app.App, ref string) (domain.User, error) {
	u, err := a.Auth.GetUser(ctx, ref)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return u, err
	}
	u, err = a.Auth.Repo.GetUserByLogin(ctx, ref)
	if errors.Is(err, repo.ErrNotFound) {
		u, err = a.Auth.Repo.GetUserByLogin(ctx, strings.ToLower(ref))
	}
	if errors.Is(err, repo.ErrNotFound) {
		return u, fmt.Errorf("user %q not found", ref)
	}
	return u, err
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON with --json, otherwise as a table built by rows.
func render(v any, header table.Row, rows func(tw table.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	rows(tw)
	tw.Render()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(cmd *cobra.Command, name string, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
