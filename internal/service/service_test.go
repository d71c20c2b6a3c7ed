package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/backendtest"
	"github.com/tgienger/taskboard/internal/models"
)

type userIdentity int64

func (u userIdentity) UserID() (int64, bool) { return int64(u), u != 0 }
func (u userIdentity) Token() string         { return "" }

func setup(t *testing.T) (*backendtest.Server, *api.Client, int64) {
	t.Helper()
	srv := backendtest.NewServer(t)
	userID := srv.AddUser("ada@example.com", "pw")
	return srv, api.New(srv.BaseURL(), userIdentity(userID)), userID
}

func ptr(s string) *string { return &s }

func TestNormalizeDueDate(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"2024-05-01", ptr("2024-05-01T00:00:00")},
		{" 2024-05-01 ", ptr("2024-05-01T00:00:00")},
		{"", nil},
		{"   ", nil},
		{"2024-05-01T08:30:00", ptr("2024-05-01T08:30:00")},
		{"next week", ptr("next week")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDueDate(tt.in))
		})
	}
}

func TestProjectService(t *testing.T) {
	srv, client, _ := setup(t)
	svc := NewProjectService(client)
	ctx := context.Background()

	projects, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	created, err := svc.Create(ctx, "Alpha", "first")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Alpha", created.Title)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)

	projects, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	require.NoError(t, svc.Delete(ctx, created.ID))
	projects, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	for _, r := range srv.Requests() {
		assert.Equal(t, "1", r.UserID, "%s %s", r.Method, r.Path)
	}
}

func TestProjectService_ProgressFromServer(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")
	srv.AddTask(p.ID, "a", true)
	srv.AddTask(p.ID, "b", false)
	srv.AddTask(p.ID, "c", false)

	got, err := NewProjectService(client).Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalTasks)
	assert.Equal(t, 1, got.CompletedTasks)
}

func TestProjectService_CreateDoesNotCheckDuplicates(t *testing.T) {
	srv, client, userID := setup(t)
	srv.AddProject(userID, "Alpha", "")

	_, err := NewProjectService(client).Create(context.Background(), "alpha", "")
	require.NoError(t, err)
	assert.Len(t, srv.Projects(), 2)
}

func TestProjectService_OtherUsersProject(t *testing.T) {
	srv, client, _ := setup(t)
	other := srv.AddUser("eve@example.com", "pw")
	p := srv.AddProject(other, "Secret", "")

	_, err := NewProjectService(client).Get(context.Background(), p.ID)
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusForbidden))
	assert.Equal(t, "Access denied", api.Message(err))
}

func TestTaskService_CreateNormalizesDueDate(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")
	svc := NewTaskService(client)

	task, err := svc.Create(context.Background(), p.ID, models.TaskInput{
		Title:   "Write",
		DueDate: ptr("2024-05-01"),
	})
	require.NoError(t, err)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2024-05-01T00:00:00", *task.DueDate)
	assert.Equal(t, "2024-05-01", task.Due())

	reqs := srv.RequestsMatching(http.MethodPost, "/api/tasks/project/"+strconv.FormatInt(p.ID, 10))
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"title":"Write","description":"","dueDate":"2024-05-01T00:00:00"}`, reqs[0].Body)
}

func TestTaskService_EmptyDueDateIsNull(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")

	task, err := NewTaskService(client).Create(context.Background(), p.ID, models.TaskInput{
		Title:   "Write",
		DueDate: ptr(""),
	})
	require.NoError(t, err)
	assert.Nil(t, task.DueDate)

	reqs := srv.RequestsMatching(http.MethodPost, "/api/tasks/project/"+strconv.FormatInt(p.ID, 10))
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"title":"Write","description":"","dueDate":null}`, reqs[0].Body)
}

func TestTaskService_CreateDoesNotMutateInput(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")

	input := models.TaskInput{Title: "Write", DueDate: ptr("2024-05-01")}
	_, err := NewTaskService(client).Create(context.Background(), p.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", *input.DueDate)
}

func TestTaskService_Lifecycle(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")
	svc := NewTaskService(client)
	ctx := context.Background()

	task, err := svc.Create(ctx, p.ID, models.TaskInput{Title: "Write", Description: "docs"})
	require.NoError(t, err)
	assert.False(t, task.Completed)

	updated, err := svc.Update(ctx, task.ID, models.TaskInput{Title: "Write more", Description: "docs", DueDate: ptr("2024-06-02")})
	require.NoError(t, err)
	assert.Equal(t, "Write more", updated.Title)
	assert.Equal(t, "2024-06-02", updated.Due())

	done, err := svc.Complete(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	reqs := srv.RequestsMatching(http.MethodPatch, "/api/tasks/"+strconv.FormatInt(task.ID, 10)+"/complete")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Body)

	tasks, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed)

	require.NoError(t, svc.Delete(ctx, task.ID))
	tasks, err = svc.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_MissingTask(t *testing.T) {
	_, client, _ := setup(t)

	_, err := NewTaskService(client).Complete(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusNotFound))
}

func TestSearchQuery_Values(t *testing.T) {
	done := false
	q := SearchQuery{
		Title:       " docs ",
		Completed:   &done,
		DueDateFrom: "2024-05-01",
	}
	v := q.Values()
	assert.Equal(t, url.Values{
		"title":       {"docs"},
		"completed":   {"false"},
		"dueDateFrom": {"2024-05-01T00:00:00"},
	}, v)

	assert.Empty(t, SearchQuery{}.Values())
}

func TestTaskService_Search(t *testing.T) {
	srv, client, userID := setup(t)
	p := srv.AddProject(userID, "Alpha", "")
	srv.AddTask(p.ID, "Write docs", false)
	srv.AddTask(p.ID, "Review docs", true)
	srv.AddTask(p.ID, "Ship", false)

	pending := false
	tasks, err := NewTaskService(client).Search(context.Background(), p.ID, SearchQuery{
		Title:     "DOCS",
		Completed: &pending,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write docs", tasks[0].Title)

	reqs := srv.RequestsMatching(http.MethodGet, "/api/tasks/project/"+strconv.FormatInt(p.ID, 10)+"/search")
	require.Len(t, reqs, 1)
	assert.Equal(t, "completed=false&title=DOCS", reqs[0].Query)
}
