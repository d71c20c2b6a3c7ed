package ui

import (
	"context"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/ui/views"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

// Session is what the app needs from the session store
type Session interface {
	Authenticator
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password string) error
	Logout() error
	Email() string
	Subscribe() (<-chan bool, func())
}

// Settings persists small UI preferences
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Deps wires the app to its data
type Deps struct {
	Session  Session
	Settings Settings
	Projects viewmodel.ProjectStore
	Tasks    viewmodel.TaskStore
	Options  viewmodel.Options

	// RestoreLastProject reopens the project that was open on exit
	RestoreLastProject bool
	Logger             *log.Logger
}

// SessionChangedMsg is sent after every login, register or logout
type SessionChangedMsg struct {
	Authenticated bool
}

// App is the root model. It owns the current screen and swaps it on navigation.
type App struct {
	deps   Deps
	router *Router
	logger *log.Logger

	match   Match
	current tea.Model

	sessionCh   <-chan bool
	unsubscribe func()

	width  int
	height int
}

// NewApp creates the application and subscribes to session changes. Call
// Close when the program exits.
func NewApp(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ch, cancel := deps.Session.Subscribe()
	return &App{
		deps:        deps,
		router:      NewRouter(deps.Session),
		logger:      logger,
		sessionCh:   ch,
		unsubscribe: cancel,
	}
}

// Close stops listening for session changes
func (a *App) Close() {
	a.unsubscribe()
}

// Match returns the screen currently shown
func (a *App) Match() Match { return a.match }

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.navigate(a.startPath()), waitForSession(a.sessionCh))
}

func waitForSession(ch <-chan bool) tea.Cmd {
	return func() tea.Msg {
		authed, ok := <-ch
		if !ok {
			return nil
		}
		return SessionChangedMsg{Authenticated: authed}
	}
}

func (a *App) startPath() string {
	if !a.deps.RestoreLastProject {
		return homePath
	}
	last, err := a.deps.Settings.GetSetting(db.KeyLastProjectID)
	if err != nil {
		a.logger.Warn("read last project", "err", err)
		return homePath
	}
	if last == "" {
		return homePath
	}
	return "/projects/" + last
}

// navigate resolves path and replaces the current screen
func (a *App) navigate(path string) tea.Cmd {
	m := a.router.Resolve(path)
	a.logger.Debug("navigate", "path", path, "route", m.Route, "resolved", m.Path)

	var view tea.Model
	switch m.Route {
	case RouteLogin:
		view = views.NewAuthView(a.deps.Session, views.ModeLogin)
	case RouteRegister:
		view = views.NewAuthView(a.deps.Session, views.ModeRegister)
	case RouteProjects:
		a.rememberProject("")
		vm := viewmodel.NewProjects(a.deps.Projects, a.deps.Options)
		view = views.NewProjectListView(vm, a.deps.Session.Email())
	case RouteProject:
		id, err := strconv.ParseInt(m.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return a.navigate(homePath)
		}
		a.rememberProject(m.Param("id"))
		vm := viewmodel.NewDetail(id, a.deps.Projects, a.deps.Tasks, a.deps.Options)
		view = views.NewProjectView(vm)
	}

	a.match = m
	a.current = view
	if a.width > 0 || a.height > 0 {
		a.current.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
	}
	return a.current.Init()
}

func (a *App) rememberProject(id string) {
	if a.deps.Settings == nil {
		return
	}
	if err := a.deps.Settings.SetSetting(db.KeyLastProjectID, id); err != nil {
		a.logger.Warn("save last project", "err", err)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case SessionChangedMsg:
		rearm := waitForSession(a.sessionCh)
		if !msg.Authenticated {
			return a, tea.Batch(a.navigate("/login"), rearm)
		}
		if a.match.Route == RouteLogin || a.match.Route == RouteRegister {
			return a, tea.Batch(a.navigate(homePath), rearm)
		}
		return a, rearm

	case views.Navigate:
		return a, a.navigate(msg.Path)

	case views.LogoutRequested:
		if err := a.deps.Session.Logout(); err != nil {
			a.logger.Error("logout", "err", err)
		}
		// the session subscription moves the app to the login screen
		return a, nil
	}

	if a.current == nil {
		return a, nil
	}
	var cmd tea.Cmd
	a.current, cmd = a.current.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	if a.current == nil {
		return ""
	}
	return a.current.View()
}
