package viewmodel

import (
	"context"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/service"
)

var testOpts = Options{ToastDuration: time.Millisecond}

type updater interface {
	Update(tea.Msg) tea.Cmd
}

// drive runs cmd and every command it leads to, feeding each result back into
// m. Toast expiry is dropped so tests can inspect the last toast.
func drive(m updater, cmd tea.Cmd) []tea.Msg {
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case ToastExpiredMsg:
		default:
			seen = append(seen, msg)
			queue = append(queue, m.Update(msg))
		}
	}
	return seen
}

type fakeProjects struct {
	mu       sync.Mutex
	projects []models.Project
	nextID   int64

	listErr   error
	createErr error
	deleteErr error

	listCalls   int
	createCalls []string
	deleteCalls []int64
	getCalls    int
}

func (f *fakeProjects) List(ctx context.Context) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Project(nil), f.projects...), nil
}

func (f *fakeProjects) Create(ctx context.Context, title, description string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, title)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	p := models.Project{ID: 100 + f.nextID, Title: title, Description: description}
	f.projects = append(f.projects, p)
	return &p, nil
}

func (f *fakeProjects) Get(ctx context.Context, id int64) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	for _, p := range f.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, notFound
}

func (f *fakeProjects) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			break
		}
	}
	return nil
}

type fakeTasks struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int64

	listErr   error
	createErr error

	listCalls     int
	createInputs  []models.TaskInput
	updateCalls   []int64
	completeCalls []int64
	deleteCalls   []int64
	searchQueries []service.SearchQuery
}

func (f *fakeTasks) List(ctx context.Context, projectID int64) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeTasks) Create(ctx context.Context, projectID int64, input models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createInputs = append(f.createInputs, input)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	t := models.Task{ID: 500 + f.nextID, Title: input.Title, Description: input.Description}
	f.tasks = append(f.tasks, t)
	return &t, nil
}

func (f *fakeTasks) Update(ctx context.Context, taskID int64, input models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, taskID)
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Title = input.Title
			f.tasks[i].Description = input.Description
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, notFound
}

func (f *fakeTasks) Complete(ctx context.Context, taskID int64) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls = append(f.completeCalls, taskID)
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Completed = true
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, notFound
}

func (f *fakeTasks) Delete(ctx context.Context, taskID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, taskID)
	for i, t := range f.tasks {
		if t.ID == taskID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return notFound
}

func (f *fakeTasks) Search(ctx context.Context, projectID int64, query service.SearchQuery) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchQueries = append(f.searchQueries, query)
	var out []models.Task
	for _, t := range f.tasks {
		if strings.Contains(strings.ToLower(t.Title), strings.ToLower(query.Title)) {
			out = append(out, t)
		}
	}
	return out, nil
}
