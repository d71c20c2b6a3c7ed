// Package viewmodel holds the state behind the projects list and the project
// detail screens. Network calls are returned as tea.Cmds and their results are
// fed back through Update, so everything here runs on the UI goroutine.
package viewmodel

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/models"
)

// Phase is the load state of a screen
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ProjectStore is the project access layer
type ProjectStore interface {
	List(ctx context.Context) ([]models.Project, error)
	Create(ctx context.Context, title, description string) (*models.Project, error)
	Get(ctx context.Context, id int64) (*models.Project, error)
	Delete(ctx context.Context, id int64) error
}

// Options are shared by the view models
type Options struct {
	ToastDuration time.Duration
	Logger        *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// ProjectsLoadedMsg carries the result of a projects load
type ProjectsLoadedMsg struct {
	seq      int
	Projects []models.Project
	Err      error
}

// ProjectCreatedMsg carries the result of a create
type ProjectCreatedMsg struct {
	Project *models.Project
	Err     error
}

// ProjectDeletedMsg carries the result of a delete
type ProjectDeletedMsg struct {
	ID  int64
	Err error
}

// Projects is the projects list screen state
type Projects struct {
	store  ProjectStore
	logger *log.Logger

	Phase    Phase
	Err      error
	projects []models.Project
	loaded   bool
	search   string
	seq      int

	pendingDelete *models.Project

	Toast Toast
}

// NewProjects creates the projects list state
func NewProjects(store ProjectStore, opts Options) *Projects {
	return &Projects{
		store:  store,
		logger: opts.logger(),
		Toast:  Toast{duration: opts.ToastDuration},
	}
}

// Load fetches the project list. Only the most recently issued load is applied.
func (m *Projects) Load() tea.Cmd {
	m.seq++
	seq := m.seq
	m.Phase = PhaseLoading
	return func() tea.Msg {
		projects, err := m.store.List(context.Background())
		return ProjectsLoadedMsg{seq: seq, Projects: projects, Err: err}
	}
}

// Projects returns every loaded project
func (m *Projects) Projects() []models.Project { return m.projects }

// HasData reports whether at least one load succeeded
func (m *Projects) HasData() bool { return m.loaded }

// Search returns the current title filter
func (m *Projects) Search() string { return m.search }

// SetSearch changes the title filter
func (m *Projects) SetSearch(s string) { m.search = s }

// Filtered returns the projects matching the search
func (m *Projects) Filtered() []models.Project {
	return FilterProjects(m.projects, m.search)
}

func (m *Projects) titles() []string {
	out := make([]string, len(m.projects))
	for i, p := range m.projects {
		out[i] = p.Title
	}
	return out
}

// Create validates title and, when it passes, creates the project. A rejected
// title only raises a toast.
func (m *Projects) Create(title, description string) tea.Cmd {
	title, err := ValidateNewTitle(title, m.titles())
	switch {
	case errors.Is(err, ErrTitleRequired):
		return m.Toast.Show(ToastError, "Title is required!")
	case errors.Is(err, ErrDuplicateTitle):
		return m.Toast.Show(ToastError, "Project with this title already exists!")
	}

	return func() tea.Msg {
		p, err := m.store.Create(context.Background(), title, description)
		return ProjectCreatedMsg{Project: p, Err: err}
	}
}

// RequestDelete asks for confirmation before deleting p
func (m *Projects) RequestDelete(p models.Project) {
	m.pendingDelete = &p
}

// PendingDelete returns the project awaiting confirmation
func (m *Projects) PendingDelete() (models.Project, bool) {
	if m.pendingDelete == nil {
		return models.Project{}, false
	}
	return *m.pendingDelete, true
}

// CancelDelete drops the pending delete without touching the server
func (m *Projects) CancelDelete() {
	m.pendingDelete = nil
}

// ConfirmDelete deletes the pending project
func (m *Projects) ConfirmDelete() tea.Cmd {
	if m.pendingDelete == nil {
		return nil
	}
	id := m.pendingDelete.ID
	m.pendingDelete = nil
	return func() tea.Msg {
		return ProjectDeletedMsg{ID: id, Err: m.store.Delete(context.Background(), id)}
	}
}

// Update applies results of earlier commands
func (m *Projects) Update(msg tea.Msg) tea.Cmd {
	if m.Toast.Update(msg) {
		return nil
	}

	switch msg := msg.(type) {
	case ProjectsLoadedMsg:
		if msg.seq != m.seq {
			m.logger.Debug("dropping stale projects load", "seq", msg.seq, "latest", m.seq)
			return nil
		}
		if msg.Err != nil {
			m.Phase = PhaseFailed
			m.Err = msg.Err
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		m.Phase = PhaseLoaded
		m.Err = nil
		m.projects = msg.Projects
		m.loaded = true

	case ProjectCreatedMsg:
		if msg.Err != nil {
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		return tea.Batch(m.Load(), m.Toast.Show(ToastSuccess, "Project created successfully!"))

	case ProjectDeletedMsg:
		if msg.Err != nil {
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		return tea.Batch(m.Load(), m.Toast.Show(ToastSuccess, "Project deleted successfully!"))
	}
	return nil
}
