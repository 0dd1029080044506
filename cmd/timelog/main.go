package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"timelog/internal/bootstrap"
	"timelog/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	dataDir    string
	driver     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "timelog",
		Short:         "Track time spent on projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <data-dir>/timelog.yaml if present)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "directory holding timelog data")
	root.PersistentFlags().StringVar(&flags.driver, "store", "", "store driver: sqlite|vault|memory")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newProjectCmd(flags))
	root.AddCommand(newTUICmd(flags))
	return root
}

func loadApp(flags *globalFlags) (*bootstrap.App, error) {
	cfg, err := config.Load(flags.configPath, config.Overrides{DataDir: flags.dataDir, Driver: flags.driver})
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

// withApp loads the application, runs fn and closes it again.
func withApp(flags *globalFlags, fn func(app *bootstrap.App) error) error {
	app, err := loadApp(flags)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				return bootstrap.Serve(cmd.Context(), app)
			})
		},
	}
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run timelog terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(flags, bootstrap.RunTUI)
		},
	}
}

func newProjectCmd(flags *globalFlags) *cobra.Command {
	project := &cobra.Command{Use: "project", Short: "Project commands"}

	project.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				out, err := app.LogCLI.AddProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", out.Name)
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "activate <name>",
		Short: "Start tracking a project, stopping any other",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				if err := app.LogCLI.ActivateProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracking %s\n", args[0])
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "deactivate <name>",
		Short: "Stop tracking a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				if err := app.LogCLI.DeactivateProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "deactivate-all",
		Short: "Stop tracking every active project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				if err := app.LogCLI.DeactivateAllProjects(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "stopped all projects")
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "duration <name>",
		Short: "Print total tracked hours, rounded to one decimal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				hours, err := app.LogCLI.ProjectDuration(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%.1f\n", hours)
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				projects, err := app.LogCLI.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no projects")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "NAME\tACTIVE\tHOURS\tCREATED")
				for _, p := range projects {
					marker := ""
					if p.Active {
						marker = "*"
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\n", p.Name, marker, p.TotalHours, humanize.Time(p.Created))
				}
				return tw.Flush()
			})
		},
	})

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a project and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *bootstrap.App) error {
				detail, err := app.LogCLI.GetProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, detail)
				}
				_, _ = fmt.Fprintf(out, "%s\n", detail.Name)
				_, _ = fmt.Fprintf(out, "created: %s (%s)\n", detail.Created.Format("2006-01-02 15:04:05Z07:00"), humanize.Time(detail.Created))
				if detail.CurrentSessionStart != nil {
					_, _ = fmt.Fprintf(out, "active since %s\n", humanize.Time(*detail.CurrentSessionStart))
				}
				_, _ = fmt.Fprintf(out, "total: %.1fh over %d sessions\n", detail.TotalHours, len(detail.Sessions))
				for _, s := range detail.Sessions {
					_, _ = fmt.Fprintf(out, "  %s  %s  %d min\n",
						s.Start.Format("2006-01-02 15:04"), s.Stop.Format("15:04"), s.DurationMinutes)
				}
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	project.AddCommand(showCmd)

	return project
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
