// Package cmd implements the taskboard command line. Without a subcommand it
// starts the terminal UI; the subcommands script the same operations.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/config"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/service"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/telemetry"
	"github.com/tgienger/taskboard/internal/ui"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

// BuildInfo is stamped in at link time
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
}

// env holds everything a command needs once the config is loaded
type env struct {
	v       *viper.Viper
	cfgFile string
	version string

	cfg      *config.Config
	logger   *log.Logger
	logFile  io.Closer
	otelStop func(context.Context) error
	db       *db.DB
	session  *session.Store
	projects *service.ProjectService
	tasks    *service.TaskService
}

func (e *env) open() error {
	if e.session != nil {
		return nil
	}
	if err := config.Init(e.v, e.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(e.v)
	if err != nil {
		return err
	}
	e.cfg = cfg

	logger, closer, err := logging.New(logging.Options{
		Level: cfg.Logging.Level,
		Path:  cfg.Logging.LogFile(),
	})
	if err != nil {
		return err
	}
	e.logger, e.logFile = logger, closer

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Options{
			Path:    cfg.Telemetry.ExportFile(),
			Version: e.version,
		})
		if err != nil {
			return err
		}
		e.otelStop = shutdown
	}

	database, err := db.New(cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	e.db = database

	opts := []api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger),
	}
	// auth calls never carry an identity
	e.session = session.New(database, api.New(cfg.API.BaseURL, nil, opts...), session.WithLogger(logger))

	client := api.New(cfg.API.BaseURL, e.session, append(opts, api.WithBearer(cfg.API.SendBearer))...)
	e.projects = service.NewProjectService(client)
	e.tasks = service.NewTaskService(client)

	logger.Debug("environment ready", "api", cfg.API.BaseURL, "data_dir", cfg.Paths.DataDir)
	return nil
}

// Close flushes telemetry and releases the database and log file
func (e *env) Close() error {
	var errs []error
	if e.otelStop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, e.otelStop(ctx))
		cancel()
		e.otelStop = nil
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
		e.db = nil
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
		e.logFile = nil
	}
	e.session = nil
	return errors.Join(errs...)
}

// requireSession fails early so commands do not send anonymous requests
func (e *env) requireSession() error {
	if !e.session.IsAuthenticated() {
		return fmt.Errorf("%w: run 'taskboard login' first", session.ErrNotAuthenticated)
	}
	return nil
}

func newRootCmd(info BuildInfo) (*cobra.Command, *env) {
	e := &env{v: viper.New(), version: info.Version}

	root := &cobra.Command{
		Use:   "taskboard",
		Short: "Terminal client for the taskboard project tracker",
		Long: `taskboard signs in to a taskboard server and manages projects and their
tasks. Run it without arguments to open the interactive UI.`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&e.cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/taskboard/config.yaml)")
	flags.String("api-url", "", "API base URL (overrides api.base_url)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = e.v.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = e.v.BindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(
		newLoginCmd(e),
		newRegisterCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newProjectsCmd(e),
		newTasksCmd(e),
		newVersionCmd(info),
	)
	return root, e
}

// Execute runs the command line and reports errors on stderr
func Execute(ctx context.Context, info BuildInfo) int {
	root, e := newRootCmd(info)
	defer e.Close()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.Message(err))
		return 1
	}
	return 0
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (e *env) runUI(ctx context.Context) error {
	if !isTerminal(os.Stdin.Fd()) || !isTerminal(os.Stdout.Fd()) {
		return errors.New("the interactive UI needs a terminal; see 'taskboard --help' for commands")
	}

	app := ui.NewApp(ui.Deps{
		Session:  e.session,
		Settings: e.db,
		Projects: e.projects,
		Tasks:    e.tasks,
		Options: viewmodel.Options{
			ToastDuration: e.cfg.UI.ToastDuration,
			Logger:        e.logger,
		},
		RestoreLastProject: e.cfg.UI.RestoreLastProject,
		Logger:             e.logger,
	})
	defer app.Close()

	e.logger.Info("starting ui")
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no config or database needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskboard %s\n", info)
		},
	}
}
