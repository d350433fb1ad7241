package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clientpilot/internal/app"
	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/fsm"
	"clientpilot/internal/repo"
)

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Manage clients of --user"}
	c.AddCommand(clientListCmd())
	c.AddCommand(clientCreateCmd())
	c.AddCommand(clientShowCmd())
	c.AddCommand(clientUpdateCmd())
	c.AddCommand(clientDeleteCmd())
	return c
}

func clientListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				cs, err := a.Engine.ListClients(ctx, u.ID)
				if err != nil {
					return err
				}
				return render(cs, table.Row{"ID", "Name", "Email", "Company"}, func(tw table.Writer) {
					for _, c := range cs {
						tw.AppendRow(table.Row{c.ID, c.Name, c.Email, c.Company})
					}
				})
			})
		},
	}
}

func clientCreateCmd() *cobra.Command {
	var in engine.ClientInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				c, err := a.Engine.CreateClient(ctx, u.ID, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("created client %s (%s)\n", c.Name, c.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "client name")
	cmd.Flags().StringVar(&in.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&in.Company, "company", "", "company")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func clientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				c, err := a.Engine.GetClient(ctx, u.ID, args[0])
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func clientUpdateCmd() *cobra.Command {
	var name, email, company, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update client fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := engine.ClientPatch{
				Name:    optional(cmd, "name", name),
				Email:   optional(cmd, "email", email),
				Company: optional(cmd, "company", company),
				Notes:   optional(cmd, "notes", notes),
			}
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				c, err := a.Engine.UpdateClient(ctx, u.ID, args[0], patch)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "client name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&company, "company", "", "company")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func clientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client with its projects and deliverables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				return a.Engine.DeleteClient(ctx, u.ID, args[0])
			})
		},
	}
}

func projectCmd() *cobra.Command {
	p := &cobra.Command{Use: "project", Short: "Manage projects of --user"}
	p.AddCommand(projectListCmd())
	p.AddCommand(projectCreateCmd())
	p.AddCommand(projectShowCmd())
	p.AddCommand(projectStatusCmd())
	p.AddCommand(projectDeleteCmd())
	return p
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				ps, err := a.Engine.ListProjects(ctx, u.ID, f)
				if err != nil {
					return err
				}
				return render(ps, table.Row{"ID", "Title", "Status", "Deadline", "Version"}, func(tw table.Writer) {
					for _, p := range ps {
						tw.AppendRow(table.Row{p.ID, p.Title, p.Status, deref(p.Deadline), p.Version})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var in engine.ProjectInput
	var deadline string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Deadline = optional(cmd, "deadline", deadline)
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				p, err := a.Engine.CreateProject(ctx, u.ID, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("created project %s (%s)\n", p.Title, p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project and its allowed transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				p, err := a.Engine.GetProject(ctx, u.ID, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"project":             p,
					"allowed_transitions": fsm.Projects.Allowed(p.Status),
				})
			})
		},
	}
}

func projectStatusCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a project to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				p, err := a.Engine.TransitionProject(ctx, u.ID, args[0], domain.ProjectStatus(args[1]), version)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("project %s is now %s (version %d)\n", p.ID, p.Status, p.Version)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "expected current version")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project with its deliverables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				return a.Engine.DeleteProject(ctx, u.ID, args[0])
			})
		},
	}
}

func deliverableCmd() *cobra.Command {
	d := &cobra.Command{Use: "deliverable", Short: "Manage deliverables of --user"}
	d.AddCommand(deliverableListCmd())
	d.AddCommand(deliverableCreateCmd())
	d.AddCommand(deliverableStatusCmd())
	d.AddCommand(deliverableDeleteCmd())
	return d
}

func deliverableListCmd() *cobra.Command {
	var f repo.DeliverableFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				ds, err := a.Engine.ListDeliverables(ctx, u.ID, f)
				if err != nil {
					return err
				}
				return render(ds, table.Row{"ID", "Title", "Status", "Due", "Project"}, func(tw table.Writer) {
					for _, d := range ds {
						tw.AppendRow(table.Row{d.ID, d.Title, d.Status, deref(d.DueDate), d.ProjectID})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func deliverableCreateCmd() *cobra.Command {
	var in engine.DeliverableInput
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deliverable",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.DueDate = optional(cmd, "due", due)
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				d, err := a.Engine.CreateDeliverable(ctx, u.ID, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("created deliverable %s (%s)\n", d.Title, d.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func deliverableStatusCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a deliverable to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				d, err := a.Engine.TransitionDeliverable(ctx, u.ID, args[0], domain.DeliverableStatus(args[1]), version)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("deliverable %s is now %s (version %d)\n", d.ID, d.Status, d.Version)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "expected current version")
	return cmd
}

func deliverableDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				return a.Engine.DeleteDeliverable(ctx, u.ID, args[0])
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the workload summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App, u domain.User) error {
				sum, err := a.Engine.Dashboard(ctx, u.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("clients: %d  active projects: %d  pending deliverables: %d  overdue: %d\n",
					sum.ClientCount, sum.ActiveProjectCount, sum.PendingDeliverableCount, sum.OverdueDeliverableCount)
				return render(sum.UpcomingMilestones, table.Row{"Due", "Deliverable", "Project", "Status"}, func(tw table.Writer) {
					for _, m := range sum.UpcomingMilestones {
						tw.AppendRow(table.Row{m.DueDate, m.Title, m.ProjectTitle, m.Status})
					}
				})
			})
		},
	}
}
