package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"clientpilot/internal/app"
	"clientpilot/internal/config"
	"clientpilot/internal/db"
	"clientpilot/internal/domain"
	"clientpilot/internal/engine/auth"
	"clientpilot/internal/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s) to %s\n", applied, cfg.Database.Path)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	var envPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file and a JWT secret to .env",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)

			env, err := godotenv.Read(envPath)
			if err != nil {
				if !os.IsNotExist(err) {
					return err
				}
				env = map[string]string{}
			}
			if env["CLIENTPILOT_JWT_SECRET"] == "" || force {
				secret := make([]byte, 32)
				if _, err := rand.Read(secret); err != nil {
					return err
				}
				env["CLIENTPILOT_JWT_SECRET"] = hex.EncodeToString(secret)
				if err := godotenv.Write(env, envPath); err != nil {
					return err
				}
				fmt.Printf("wrote CLIENTPILOT_JWT_SECRET to %s\n", envPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&envPath, "env-file", ".env", "dotenv file receiving the JWT secret")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			mask := func(s *string) {
				if *s != "" {
					*s = "********"
				}
			}
			mask(&masked.Auth.JWTSecret)
			mask(&masked.AI.GeminiAPIKey)
			mask(&masked.AI.OpenAIAPIKey)
			if viper.GetBool("json") {
				return printJSON(masked)
			}
			out, err := yaml.Marshal(masked)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage user accounts"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var in auth.SignupInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("CLIENTPILOT_PASSWORD")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.Signup(ctx, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "username")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (or CLIENTPILOT_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Auth.ListUsers(ctx)
				if err != nil {
					return err
				}
				return render(users, table.Row{"ID", "Username", "Email", "Created"}, func(tw table.Writer) {
					for _, u := range users {
						tw.AppendRow(table.Row{u.ID, u.Username, u.Email, u.CreatedAt})
					}
				})
			})
		},
	}
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys of --user"}
	k.AddCommand(apiKeyCreateCmd())
	k.AddCommand(apiKeyListCmd())
	k.AddCommand(apiKeyDeleteCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				raw, key, err := a.Auth.CreateAPIKey(ctx, u.ID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "name": key.Name, "key": raw})
				}
				fmt.Printf("api key %s created for %s\n%s\n", key.ID, u.Username, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "label")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				keys, err := a.Auth.ListAPIKeys(ctx, u.ID)
				if err != nil {
					return err
				}
				return render(keys, table.Row{"ID", "Name", "Created"}, func(tw table.Writer) {
					for _, k := range keys {
						tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
					}
				})
			})
		},
	}
}

func apiKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				return a.Auth.DeleteAPIKey(ctx, u.ID, args[0])
			})
		},
	}
}
