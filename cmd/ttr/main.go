package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flaviogranato/tasktaskrevolution/internal/config"
	"github.com/flaviogranato/tasktaskrevolution/internal/ids"
	"github.com/flaviogranato/tasktaskrevolution/internal/model"
	"github.com/flaviogranato/tasktaskrevolution/internal/report"
	"github.com/flaviogranato/tasktaskrevolution/internal/schedule"
	"github.com/flaviogranato/tasktaskrevolution/internal/serve"
	"github.com/flaviogranato/tasktaskrevolution/internal/store"
	"github.com/flaviogranato/tasktaskrevolution/internal/telemetry"
	"github.com/flaviogranato/tasktaskrevolution/internal/tracker"
)

const dateLayout = "2006-01-02"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ttr",
		Short: "File-backed project tracker with dependency-aware scheduling",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ttr.yaml", "Config file path")

	// create
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create companies, projects, tasks, and resources",
	}

	var companyName string
	createCompanyCmd := &cobra.Command{
		Use:   "company",
		Short: "Create a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			c := &model.Company{Code: ids.Slug(companyName), Name: companyName}
			if err := tr.Store().SaveCompany(c); err != nil {
				return err
			}
			fmt.Printf("Created company %s\n", c.Code)
			return nil
		},
	}
	createCompanyCmd.Flags().StringVar(&companyName, "name", "", "Company name")
	_ = createCompanyCmd.MarkFlagRequired("name")

	var (
		projectName    string
		projectCompany string
	)
	createProjectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			p := &model.Project{
				Code:        ids.Slug(projectName),
				Name:        projectName,
				CompanyCode: projectCompany,
			}
			if err := tr.Store().SaveProject(p); err != nil {
				return err
			}
			fmt.Printf("Created project %s in company %s\n", p.Code, p.CompanyCode)
			return nil
		},
	}
	createProjectCmd.Flags().StringVar(&projectName, "name", "", "Project name")
	createProjectCmd.Flags().StringVar(&projectCompany, "company", "", "Company code")
	_ = createProjectCmd.MarkFlagRequired("name")
	_ = createProjectCmd.MarkFlagRequired("company")

	var (
		taskName     string
		taskCompany  string
		taskProject  string
		taskStart    string
		taskEnd      string
		taskDuration int
		taskFixed    bool
	)
	createTaskCmd := &cobra.Command{
		Use:   "task",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			task := &model.Task{
				Code:        ids.Slug(taskName),
				Name:        taskName,
				ProjectCode: taskProject,
				Duration:    taskDuration,
				Fixed:       taskFixed,
			}
			if task.Start, err = parseDay(taskStart); err != nil {
				return err
			}
			if task.End, err = parseDay(taskEnd); err != nil {
				return err
			}
			if err := tr.CreateTask(taskCompany, task); err != nil {
				return err
			}
			fmt.Printf("Created task %s in project %s\n", task.Code, task.ProjectCode)
			return nil
		},
	}
	createTaskCmd.Flags().StringVar(&taskName, "name", "", "Task name")
	createTaskCmd.Flags().StringVar(&taskCompany, "company", "", "Company code")
	createTaskCmd.Flags().StringVar(&taskProject, "project", "", "Project code")
	createTaskCmd.Flags().StringVar(&taskStart, "start", "", "Start date (YYYY-MM-DD)")
	createTaskCmd.Flags().StringVar(&taskEnd, "end", "", "End date (YYYY-MM-DD)")
	createTaskCmd.Flags().IntVar(&taskDuration, "duration", 0, "Duration in days")
	createTaskCmd.Flags().BoolVar(&taskFixed, "fixed", false, "Pin the dates; scheduling never moves them")
	_ = createTaskCmd.MarkFlagRequired("name")
	_ = createTaskCmd.MarkFlagRequired("company")
	_ = createTaskCmd.MarkFlagRequired("project")

	var (
		resourceName  string
		resourceType  string
		resourceEmail string
	)
	createResourceCmd := &cobra.Command{
		Use:   "resource",
		Short: "Create a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			r := &model.Resource{
				Code:  ids.Slug(resourceName),
				Name:  resourceName,
				Type:  resourceType,
				Email: resourceEmail,
			}
			if err := tr.Store().SaveResource(r); err != nil {
				return err
			}
			fmt.Printf("Created resource %s\n", r.Code)
			return nil
		},
	}
	createResourceCmd.Flags().StringVar(&resourceName, "name", "", "Resource name")
	createResourceCmd.Flags().StringVar(&resourceType, "type", "", "Resource type")
	createResourceCmd.Flags().StringVar(&resourceEmail, "email", "", "Contact email")
	_ = createResourceCmd.MarkFlagRequired("name")

	createCmd.AddCommand(createCompanyCmd, createProjectCmd, createTaskCmd, createResourceCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workspace entities",
	}

	listCompaniesCmd := &cobra.Command{
		Use:   "companies",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			companies, err := tr.Store().ListCompanies()
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "CODE\tNAME")
			for _, c := range companies {
				fmt.Fprintf(w, "%s\t%s\n", c.Code, c.Name)
			}
			return w.Flush()
		},
	}

	var listCompany string
	listProjectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects of a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			projects, err := tr.Store().ListProjects(listCompany)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "CODE\tNAME\tSTART\tEND")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Code, p.Name, formatDay(p.Start), formatDay(p.End))
			}
			return w.Flush()
		},
	}
	listProjectsCmd.Flags().StringVar(&listCompany, "company", "", "Company code")
	_ = listProjectsCmd.MarkFlagRequired("company")

	var (
		listTasksCompany string
		listTasksProject string
	)
	listTasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			tasks, err := tr.Store().LoadTasks(listTasksCompany, listTasksProject)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "CODE\tNAME\tSTATUS\tSTART\tEND\tFIXED")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
					t.Code, t.Name, t.Status, formatDay(t.Start), formatDay(t.End), t.Fixed)
			}
			return w.Flush()
		},
	}
	listTasksCmd.Flags().StringVar(&listTasksCompany, "company", "", "Company code")
	listTasksCmd.Flags().StringVar(&listTasksProject, "project", "", "Project code")
	_ = listTasksCmd.MarkFlagRequired("company")
	_ = listTasksCmd.MarkFlagRequired("project")

	listResourcesCmd := &cobra.Command{
		Use:   "resources",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			resources, err := tr.Store().ListResources()
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "CODE\tNAME\tTYPE\tEMAIL\tVACATIONS")
			for _, r := range resources {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.Code, r.Name, r.Type, r.Email, len(r.Vacations))
			}
			return w.Flush()
		},
	}

	listCmd.AddCommand(listCompaniesCmd, listProjectsCmd, listTasksCmd, listResourcesCmd)

	// link / unlink
	var (
		linkCompany string
		linkProject string
		linkFrom    string
		linkTo      string
		linkType    string
		linkLag     int
	)
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Add a dependency between two tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			link, err := tr.Link(cmd.Context(), linkCompany, linkProject,
				linkFrom, linkTo, schedule.DependencyType(linkType), linkLag)
			if err != nil {
				return err
			}
			fmt.Printf("Linked %s -> %s (%s, lag %dd, id %s)\n",
				link.From, link.To, link.Type, link.Lag, link.ID)
			return nil
		},
	}
	linkCmd.Flags().StringVar(&linkCompany, "company", "", "Company code")
	linkCmd.Flags().StringVar(&linkProject, "project", "", "Project code")
	linkCmd.Flags().StringVar(&linkFrom, "from", "", "Predecessor task code")
	linkCmd.Flags().StringVar(&linkTo, "to", "", "Successor task code")
	linkCmd.Flags().StringVar(&linkType, "type", "FS", "Dependency type: FS, SS, FF, or SF")
	linkCmd.Flags().IntVar(&linkLag, "lag", 0, "Lag in days; negative for lead")
	_ = linkCmd.MarkFlagRequired("company")
	_ = linkCmd.MarkFlagRequired("project")
	_ = linkCmd.MarkFlagRequired("from")
	_ = linkCmd.MarkFlagRequired("to")

	unlinkCmd := &cobra.Command{
		Use:   "unlink",
		Short: "Remove a dependency between two tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			if err := tr.Unlink(cmd.Context(), linkCompany, linkProject, linkFrom, linkTo); err != nil {
				return err
			}
			fmt.Printf("Unlinked %s -> %s\n", linkFrom, linkTo)
			return nil
		},
	}
	unlinkCmd.Flags().StringVar(&linkCompany, "company", "", "Company code")
	unlinkCmd.Flags().StringVar(&linkProject, "project", "", "Project code")
	unlinkCmd.Flags().StringVar(&linkFrom, "from", "", "Predecessor task code")
	unlinkCmd.Flags().StringVar(&linkTo, "to", "", "Successor task code")
	_ = unlinkCmd.MarkFlagRequired("company")
	_ = unlinkCmd.MarkFlagRequired("project")
	_ = unlinkCmd.MarkFlagRequired("from")
	_ = unlinkCmd.MarkFlagRequired("to")

	// validate
	var (
		valCompany string
		valProject string
	)
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a project for dependency cycles and date conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, shutdown, err := initTracing(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdown()
			rep, err := tr.Validate(ctx, valCompany, valProject)
			if err != nil {
				return err
			}
			if rep.Clean() {
				fmt.Println("OK: no cycles, no conflicts")
				return nil
			}
			for _, c := range rep.Cycles {
				fmt.Printf("CYCLE: %v\n", c.Path)
			}
			for _, v := range rep.Violations {
				fmt.Printf("CONFLICT: task %s: %s requires %s, has %s\n",
					v.Task, v.Rule, formatDay(v.Required), formatDay(v.Actual))
			}
			return fmt.Errorf("validation failed: %s", rep.Summary())
		},
	}
	validateCmd.Flags().StringVar(&valCompany, "company", "", "Company code")
	validateCmd.Flags().StringVar(&valProject, "project", "", "Project code")
	_ = validateCmd.MarkFlagRequired("company")
	_ = validateCmd.MarkFlagRequired("project")

	// recompute
	var (
		recCompany string
		recProject string
		recFrom    string
		recDryRun  bool
		recStrict  bool
	)
	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute task dates from the dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, shutdown, err := initTracing(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdown()
			outcome, err := tr.Recompute(ctx, recCompany, recProject, tracker.RecomputeOptions{
				From:   recFrom,
				DryRun: recDryRun,
				Strict: recStrict,
			})
			if outcome != nil {
				printOutcome(outcome)
			}
			return err
		},
	}
	recomputeCmd.Flags().StringVar(&recCompany, "company", "", "Company code")
	recomputeCmd.Flags().StringVar(&recProject, "project", "", "Project code")
	recomputeCmd.Flags().StringVar(&recFrom, "from", "", "Only recompute descendants of this task")
	recomputeCmd.Flags().BoolVar(&recDryRun, "dry-run", false, "Compute without persisting")
	recomputeCmd.Flags().BoolVar(&recStrict, "strict", false, "Refuse to persist when any task conflicts")
	_ = recomputeCmd.MarkFlagRequired("company")
	_ = recomputeCmd.MarkFlagRequired("project")

	// report
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate CSV and HTML reports for the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			builder := report.NewBuilder(tr.Store(), reportDir(cfg), slog.Default())
			files, err := builder.BuildAll()
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}

	// serve
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated reports over HTTP with live reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, shutdown, err := initTracing(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			dir := reportDir(cfg)
			builder := report.NewBuilder(tr.Store(), dir, slog.Default())
			if _, err := builder.BuildAll(); err != nil {
				return fmt.Errorf("initial report build: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv := serve.NewServer(serve.Options{
				Host:       cfg.Serve.Host,
				Port:       cfg.Serve.Port,
				Dir:        dir,
				LiveReload: cfg.Serve.LiveReload,
			}, slog.Default())
			return srv.Run(ctx)
		},
	}

	rootCmd.AddCommand(createCmd, listCmd, linkCmd, unlinkCmd, validateCmd, recomputeCmd, reportCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, wires logging, and builds the tracker service.
func setup(configPath string) (*config.Config, *tracker.Tracker, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	initLogging(cfg)

	var cache *schedule.Cache
	if cfg.Engine.CacheMaxEntries > 0 {
		cache = schedule.NewCache(
			time.Duration(cfg.Engine.CacheTTLSeconds)*time.Second,
			cfg.Engine.CacheMaxEntries,
		)
	}
	tr := tracker.New(store.NewStore(cfg.Workspace.Root), cache, slog.Default())
	tr.Workers = cfg.Engine.Workers
	return cfg, tr, nil
}

func initLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracing(ctx context.Context, cfg *config.Config) (context.Context, func(), error) {
	tp, err := telemetry.InitTracing(ctx, &telemetry.TracingConfig{
		ServiceName:    "ttr",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRate:     1.0,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("init tracing: %w", err)
	}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}
	return ctx, shutdown, nil
}

func reportDir(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Workspace.ReportDir) {
		return cfg.Workspace.ReportDir
	}
	return filepath.Join(cfg.Workspace.Root, cfg.Workspace.ReportDir)
}

func printOutcome(o *schedule.Outcome) {
	w := newTable()
	fmt.Fprintln(w, "TASK\tSTATUS\tSTART\tEND")
	for _, r := range o.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Code, r.Status, formatDay(r.Start), formatDay(r.End))
	}
	w.Flush()
	for _, v := range o.Violations {
		fmt.Printf("CONFLICT: task %s: %s requires %s, has %s\n",
			v.Task, v.Rule, formatDay(v.Required), formatDay(v.Actual))
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
