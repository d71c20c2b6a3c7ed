package service

import (
	"context"
	"fmt"

	"github.com/tgienger/taskboard/internal/models"
)

// ProjectService reads and writes the signed-in user's projects
type ProjectService struct {
	client Requester
}

// NewProjectService creates a ProjectService
func NewProjectService(client Requester) *ProjectService {
	return &ProjectService{client: client}
}

// List returns every project of the signed-in user
func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := s.client.Get(ctx, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Create adds a project. Titles are not checked for duplicates here.
func (s *ProjectService) Create(ctx context.Context, title, description string) (*models.Project, error) {
	body := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}{title, description}

	var project models.Project
	if err := s.client.Post(ctx, "/projects", body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Get returns a single project
func (s *ProjectService) Get(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	if err := s.client.Get(ctx, fmt.Sprintf("/projects/%d", id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes a project and its tasks
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	return s.client.Delete(ctx, fmt.Sprintf("/projects/%d", id))
}
