package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clientpilot/internal/ai"
	"clientpilot/internal/app"
	"clientpilot/internal/domain"
	"clientpilot/internal/repo"
)

func aiCmd() *cobra.Command {
	c := &cobra.Command{Use: "ai", Short: "Run AI operations (recorded as agent runs)"}
	c.AddCommand(aiScopeCmd())
	c.AddCommand(aiProjectCmd("risk", "Analyze delivery risk of a project", func(ctx context.Context, a *app.App, userID, projectID string) (ai.Result, error) {
		return a.Engine.AnalyzeRisk(ctx, userID, projectID)
	}))
	c.AddCommand(aiProjectCmd("update", "Draft a client update for a project", func(ctx context.Context, a *app.App, userID, projectID string) (ai.Result, error) {
		return a.Engine.GenerateUpdate(ctx, userID, projectID)
	}))
	return c
}

func printResult(res ai.Result) error {
	return printJSON(map[string]any{"run_id": res.RunID, "result": res.Output})
}

func aiScopeCmd() *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Structure free-form notes into a scope (--text, --file or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				var (
					b   []byte
					err error
				)
				switch file {
				case "":
					return errors.New("--text or --file is required")
				case "-":
					b, err = io.ReadAll(os.Stdin)
				default:
					b, err = os.ReadFile(file)
				}
				if err != nil {
					return err
				}
				text = string(b)
			}
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				res, err := a.Engine.StructureScope(ctx, u.ID, text)
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "notes text")
	cmd.Flags().StringVar(&file, "file", "", "read notes from a file (- for stdin)")
	return cmd
}

func aiProjectCmd(use, short string, run func(ctx context.Context, a *app.App, userID, projectID string) (ai.Result, error)) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				res, err := run(ctx, a, u.ID, projectID)
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runsCmd() *cobra.Command {
	c := &cobra.Command{Use: "runs", Short: "Inspect agent runs"}
	c.AddCommand(runsListCmd())
	c.AddCommand(runsShowCmd())
	return c
}

func runsListCmd() *cobra.Command {
	var f repo.RunFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				runs, err := a.Engine.ListRuns(ctx, u.ID, f)
				if err != nil {
					return err
				}
				return render(runs, table.Row{"ID", "Action", "Status", "Started", "Error"}, func(tw table.Writer) {
					for _, r := range runs {
						tw.AppendRow(table.Row{r.ID, r.Action, r.Status, r.StartedAt, deref(r.ErrorMessage)})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.Action, "action", "", "action filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "max runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				run, err := a.Engine.GetRun(ctx, u.ID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				return render(run, table.Row{"#", "Action", "Done", "Created"}, func(tw table.Writer) {
					tw.SetTitle("%s  %s  %s", run.ID, run.Action, run.Status)
					for _, s := range run.Steps {
						tw.AppendRow(table.Row{s.StepNumber, s.Action, s.OutputJSON != nil, s.CreatedAt})
					}
				})
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the activity log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				evs, err := a.Engine.ListEvents(ctx, u.ID, f)
				if err != nil {
					return err
				}
				return render(evs, table.Row{"ID", "Time", "Type", "Entity", "Payload"}, func(tw table.Writer) {
					for _, e := range evs {
						tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.PayloadJSON})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "kind", "", "entity kind filter")
	cmd.Flags().StringVar(&f.EntityID, "entity", "", "entity id filter")
	cmd.Flags().Int64Var(&f.Cursor, "before", 0, "only events with a smaller id")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max events")
	return cmd
}
