package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tgienger/taskboard/internal/models"
)

// SearchQuery holds the server-side task search parameters. Empty fields are
// not sent.
type SearchQuery struct {
	Title       string
	Description string
	Completed   *bool
	DueDateFrom string
	DueDateTo   string
}

// Values encodes the query as URL parameters
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Title); s != "" {
		v.Set("title", s)
	}
	if s := strings.TrimSpace(q.Description); s != "" {
		v.Set("description", s)
	}
	if q.Completed != nil {
		v.Set("completed", strconv.FormatBool(*q.Completed))
	}
	if d := NormalizeDueDate(q.DueDateFrom); d != nil {
		v.Set("dueDateFrom", *d)
	}
	if d := NormalizeDueDate(q.DueDateTo); d != nil {
		v.Set("dueDateTo", *d)
	}
	return v
}

// TaskService reads and writes tasks
type TaskService struct {
	client Requester
}

// NewTaskService creates a TaskService
func NewTaskService(client Requester) *TaskService {
	return &TaskService{client: client}
}

// List returns the tasks of a project
func (s *TaskService) List(ctx context.Context, projectID int64) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.client.Get(ctx, fmt.Sprintf("/tasks/project/%d", projectID), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create adds a task to a project
func (s *TaskService) Create(ctx context.Context, projectID int64, input models.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := s.client.Post(ctx, fmt.Sprintf("/tasks/project/%d", projectID), normalize(input), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update changes a task's title, description and due date
func (s *TaskService) Update(ctx context.Context, taskID int64, input models.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := s.client.Patch(ctx, fmt.Sprintf("/tasks/%d", taskID), normalize(input), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Complete marks a task done. There is no way back to pending.
func (s *TaskService) Complete(ctx context.Context, taskID int64) (*models.Task, error) {
	var task models.Task
	if err := s.client.Patch(ctx, fmt.Sprintf("/tasks/%d/complete", taskID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, taskID int64) error {
	return s.client.Delete(ctx, fmt.Sprintf("/tasks/%d", taskID))
}

// Search runs a server-side search within a project
func (s *TaskService) Search(ctx context.Context, projectID int64, query SearchQuery) ([]models.Task, error) {
	var tasks []models.Task
	path := fmt.Sprintf("/tasks/project/%d/search", projectID)
	if err := s.client.Get(ctx, path, query.Values(), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func normalize(input models.TaskInput) models.TaskInput {
	out := input
	out.DueDate = nil
	if input.DueDate != nil {
		out.DueDate = NormalizeDueDate(*input.DueDate)
	}
	return out
}
