package viewmodel

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/service"
)

// TaskStore is the task access layer
type TaskStore interface {
	List(ctx context.Context, projectID int64) ([]models.Task, error)
	Create(ctx context.Context, projectID int64, input models.TaskInput) (*models.Task, error)
	Update(ctx context.Context, taskID int64, input models.TaskInput) (*models.Task, error)
	Complete(ctx context.Context, taskID int64) (*models.Task, error)
	Delete(ctx context.Context, taskID int64) error
	Search(ctx context.Context, projectID int64, query service.SearchQuery) ([]models.Task, error)
}

// ProjectGetter loads a single project
type ProjectGetter interface {
	Get(ctx context.Context, id int64) (*models.Project, error)
}

// TaskForm is the raw input of the create and edit forms
type TaskForm struct {
	Title       string
	Description string
	DueDate     string // YYYY-MM-DD or empty
}

// DetailLoadedMsg carries the project and its tasks
type DetailLoadedMsg struct {
	seq     int
	taskSeq int
	Project *models.Project
	Tasks   []models.Task
	Err     error
}

// TasksLoadedMsg carries a task list reload
type TasksLoadedMsg struct {
	seq   int
	Tasks []models.Task
	Err   error
}

// TaskSearchMsg carries server search results
type TaskSearchMsg struct {
	seq   int
	Tasks []models.Task
	Err   error
}

// TaskCreatedMsg carries the result of a create
type TaskCreatedMsg struct {
	Task *models.Task
	Err  error
}

// TaskUpdatedMsg carries the result of an edit
type TaskUpdatedMsg struct {
	Task *models.Task
	Err  error
}

// TaskCompletedMsg carries the result of a completion
type TaskCompletedMsg struct {
	Task *models.Task
	Err  error
}

// TaskDeletedMsg carries the result of a delete
type TaskDeletedMsg struct {
	ID  int64
	Err error
}

// Detail is the project detail screen state
type Detail struct {
	projectID int64
	projects  ProjectGetter
	store     TaskStore
	logger    *log.Logger

	Phase   Phase
	Err     error
	project *models.Project
	tasks   []models.Task
	loaded  bool

	loadSeq   int
	taskSeq   int
	searchSeq int

	search       string
	status       StatusFilter
	serverSearch bool
	results      []models.Task

	pendingDelete *models.Task

	Toast Toast
}

// NewDetail creates the detail state for one project
func NewDetail(projectID int64, projects ProjectGetter, tasks TaskStore, opts Options) *Detail {
	return &Detail{
		projectID: projectID,
		projects:  projects,
		store:     tasks,
		logger:    opts.logger(),
		Toast:     Toast{duration: opts.ToastDuration},
	}
}

// ProjectID is the id of the project being shown
func (m *Detail) ProjectID() int64 { return m.projectID }

// Project returns the loaded project, nil before the first load
func (m *Detail) Project() *models.Project { return m.project }

// Tasks returns every loaded task
func (m *Detail) Tasks() []models.Task { return m.tasks }

// HasData reports whether a load succeeded
func (m *Detail) HasData() bool { return m.loaded }

// Load fetches the project and its tasks in parallel
func (m *Detail) Load() tea.Cmd {
	m.loadSeq++
	m.taskSeq++
	seq, taskSeq := m.loadSeq, m.taskSeq
	m.Phase = PhaseLoading
	id := m.projectID

	return func() tea.Msg {
		var (
			project *models.Project
			tasks   []models.Task
		)
		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			var err error
			project, err = m.projects.Get(ctx, id)
			return err
		})
		g.Go(func() error {
			var err error
			tasks, err = m.store.List(ctx, id)
			return err
		})
		err := g.Wait()
		return DetailLoadedMsg{seq: seq, taskSeq: taskSeq, Project: project, Tasks: tasks, Err: err}
	}
}

// ReloadTasks refetches only the task list
func (m *Detail) ReloadTasks() tea.Cmd {
	m.taskSeq++
	seq := m.taskSeq
	m.Phase = PhaseLoading
	id := m.projectID
	return func() tea.Msg {
		tasks, err := m.store.List(context.Background(), id)
		return TasksLoadedMsg{seq: seq, Tasks: tasks, Err: err}
	}
}

// Progress is the completion percentage of the loaded tasks
func (m *Detail) Progress() int { return Progress(m.tasks) }

// Completed counts completed tasks
func (m *Detail) Completed() int {
	n := 0
	for _, t := range m.tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// Search returns the current title search
func (m *Detail) Search() string { return m.search }

// Status returns the current status filter
func (m *Detail) Status() StatusFilter { return m.status }

// ServerSearch reports whether searches go to the backend
func (m *Detail) ServerSearch() bool { return m.serverSearch }

// UseServerSearch switches between filtering loaded tasks locally and asking
// the backend's search endpoint
func (m *Detail) UseServerSearch(enabled bool) tea.Cmd {
	m.serverSearch = enabled
	m.results = nil
	return m.runSearch()
}

// SetSearch changes the title search
func (m *Detail) SetSearch(s string) tea.Cmd {
	m.search = s
	return m.runSearch()
}

// SetStatus changes the status filter
func (m *Detail) SetStatus(f StatusFilter) tea.Cmd {
	m.status = f
	return m.runSearch()
}

// CycleStatus moves to the next status filter
func (m *Detail) CycleStatus() tea.Cmd {
	return m.SetStatus(m.status.Next())
}

func (m *Detail) serverSearching() bool {
	return m.serverSearch && strings.TrimSpace(m.search) != ""
}

func (m *Detail) runSearch() tea.Cmd {
	if !m.serverSearching() {
		return nil
	}
	m.searchSeq++
	seq := m.searchSeq
	id := m.projectID
	query := service.SearchQuery{Title: m.search, Completed: m.status.Completed()}
	return func() tea.Msg {
		tasks, err := m.store.Search(context.Background(), id, query)
		return TaskSearchMsg{seq: seq, Tasks: tasks, Err: err}
	}
}

// Filtered returns the tasks to display
func (m *Detail) Filtered() []models.Task {
	if m.serverSearching() {
		// results reflect the query at the time it was sent
		return FilterTasks(m.results, "", m.status)
	}
	return FilterTasks(m.tasks, m.search, m.status)
}

// Task looks up a loaded task by id
func (m *Detail) Task(id int64) (models.Task, bool) {
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

func (m *Detail) titles(skip int64) []string {
	out := make([]string, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.ID != skip {
			out = append(out, t.Title)
		}
	}
	return out
}

func (m *Detail) rejectTitle(err error) tea.Cmd {
	switch {
	case errors.Is(err, ErrTitleRequired):
		return m.Toast.Show(ToastError, "Task title is required!")
	case errors.Is(err, ErrDuplicateTitle):
		return m.Toast.Show(ToastError, "Task with this title already exists!")
	}
	return nil
}

func (f TaskForm) input(title string) models.TaskInput {
	due := f.DueDate
	return models.TaskInput{
		Title:       title,
		Description: f.Description,
		DueDate:     &due,
	}
}

// Create validates the form and adds the task
func (m *Detail) Create(form TaskForm) tea.Cmd {
	title, err := ValidateNewTitle(form.Title, m.titles(0))
	if err != nil {
		return m.rejectTitle(err)
	}
	input := form.input(title)
	id := m.projectID
	return func() tea.Msg {
		t, err := m.store.Create(context.Background(), id, input)
		return TaskCreatedMsg{Task: t, Err: err}
	}
}

// Edit validates the form and updates task id. The task's own title does not
// count as a duplicate.
func (m *Detail) Edit(id int64, form TaskForm) tea.Cmd {
	title, err := ValidateNewTitle(form.Title, m.titles(id))
	if err != nil {
		return m.rejectTitle(err)
	}
	input := form.input(title)
	return func() tea.Msg {
		t, err := m.store.Update(context.Background(), id, input)
		return TaskUpdatedMsg{Task: t, Err: err}
	}
}

// Complete marks task id done. Completed tasks are left alone.
func (m *Detail) Complete(id int64) tea.Cmd {
	if t, ok := m.Task(id); ok && t.Completed {
		return nil
	}
	return func() tea.Msg {
		t, err := m.store.Complete(context.Background(), id)
		return TaskCompletedMsg{Task: t, Err: err}
	}
}

// RequestDelete asks for confirmation before deleting t
func (m *Detail) RequestDelete(t models.Task) {
	m.pendingDelete = &t
}

// PendingDelete returns the task awaiting confirmation
func (m *Detail) PendingDelete() (models.Task, bool) {
	if m.pendingDelete == nil {
		return models.Task{}, false
	}
	return *m.pendingDelete, true
}

// CancelDelete drops the pending delete
func (m *Detail) CancelDelete() {
	m.pendingDelete = nil
}

// ConfirmDelete deletes the pending task
func (m *Detail) ConfirmDelete() tea.Cmd {
	if m.pendingDelete == nil {
		return nil
	}
	id := m.pendingDelete.ID
	m.pendingDelete = nil
	return func() tea.Msg {
		return TaskDeletedMsg{ID: id, Err: m.store.Delete(context.Background(), id)}
	}
}

func (m *Detail) afterMutation(err error, success string) tea.Cmd {
	if err != nil {
		return m.Toast.Show(ToastError, api.Message(err))
	}
	return tea.Batch(m.ReloadTasks(), m.runSearch(), m.Toast.Show(ToastSuccess, success))
}

// Update applies results of earlier commands
func (m *Detail) Update(msg tea.Msg) tea.Cmd {
	if m.Toast.Update(msg) {
		return nil
	}

	switch msg := msg.(type) {
	case DetailLoadedMsg:
		if msg.seq != m.loadSeq {
			m.logger.Debug("dropping stale project load", "seq", msg.seq, "latest", m.loadSeq)
			return nil
		}
		if msg.Err != nil {
			m.Phase = PhaseFailed
			m.Err = msg.Err
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		m.project = msg.Project
		if msg.taskSeq == m.taskSeq {
			m.tasks = msg.Tasks
			m.Phase = PhaseLoaded
		}
		m.Err = nil
		m.loaded = true

	case TasksLoadedMsg:
		if msg.seq != m.taskSeq {
			m.logger.Debug("dropping stale task load", "seq", msg.seq, "latest", m.taskSeq)
			return nil
		}
		if msg.Err != nil {
			m.Phase = PhaseFailed
			m.Err = msg.Err
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		m.tasks = msg.Tasks
		m.Phase = PhaseLoaded
		m.Err = nil

	case TaskSearchMsg:
		if msg.seq != m.searchSeq {
			return nil
		}
		if msg.Err != nil {
			return m.Toast.Show(ToastError, api.Message(msg.Err))
		}
		m.results = msg.Tasks

	case TaskCreatedMsg:
		return m.afterMutation(msg.Err, "Task created successfully!")

	case TaskUpdatedMsg:
		return m.afterMutation(msg.Err, "Task updated successfully!")

	case TaskCompletedMsg:
		return m.afterMutation(msg.Err, "Task marked as completed!")

	case TaskDeletedMsg:
		return m.afterMutation(msg.Err, "Task deleted successfully!")
	}
	return nil
}
