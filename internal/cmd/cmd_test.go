package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/backendtest"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/viewmodel"
)

// setupEnv points config, data and logs at temp dirs and the API at a fake backend
func setupEnv(t *testing.T) *backendtest.Server {
	t.Helper()
	srv := backendtest.NewServer(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("TASKBOARD_API_BASE_URL", srv.BaseURL())
	t.Setenv("TASKBOARD_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("TASKBOARD_LOGGING_FILE", filepath.Join(dir, "taskboard.log"))
	t.Setenv("TASKBOARD_TELEMETRY_FILE", filepath.Join(dir, "telemetry.jsonl"))
	return srv
}

// executeCommand runs a fresh command tree with args and returns captured output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, e := newRootCmd(BuildInfo{Version: "test", Commit: "abc", Date: "today"})
	t.Cleanup(func() { _ = e.Close() })

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func login(t *testing.T, srv *backendtest.Server) int64 {
	t.Helper()
	id := srv.AddUser("ada@example.com", "hunter2")
	_, err := executeCommand(t, "", "login", "-e", "ada@example.com", "-p", "hunter2")
	require.NoError(t, err)
	return id
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestRootCommand_Subcommands(t *testing.T) {
	root, _ := newRootCmd(BuildInfo{})
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "register", "logout", "whoami", "projects", "tasks", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "taskboard test (commit: abc, built: today)\n", out)
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)

	out, err := executeCommand(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "(user "+itoa(userID)+")")
	assert.Contains(t, out, "session expires")

	out, err = executeCommand(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = executeCommand(t, "", "whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	srv := setupEnv(t)
	srv.AddUser("ada@example.com", "hunter2")

	out, err := executeCommand(t, "hunter2\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := setupEnv(t)
	srv.AddUser("ada@example.com", "hunter2")

	_, err := executeCommand(t, "", "login", "-e", "ada@example.com", "-p", "nope")
	require.Error(t, err)
	assert.Equal(t, "Bad credentials", api.Message(err))
}

func TestLogin_InvalidEmailSkipsNetwork(t *testing.T) {
	srv := setupEnv(t)

	_, err := executeCommand(t, "", "login", "-e", "not-an-email", "-p", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.Empty(t, srv.Requests())
}

func TestRegister(t *testing.T) {
	srv := setupEnv(t)

	out, err := executeCommand(t, "", "register", "-e", "new@example.com", "-p", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as new@example.com")
	assert.Len(t, srv.RequestsMatching(http.MethodPost, "/api/auth/register"), 1)
}

func TestProjects_RequireSession(t *testing.T) {
	srv := setupEnv(t)

	_, err := executeCommand(t, "", "projects", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, srv.Requests())
}

func TestProjects_Lifecycle(t *testing.T) {
	srv := setupEnv(t)
	login(t, srv)

	out, err := executeCommand(t, "", "projects", "create", "  Alpha ", "-d", "first project")
	require.NoError(t, err)
	assert.Contains(t, out, "Created project")
	require.Len(t, srv.Projects(), 1)
	project := srv.Projects()[0]
	assert.Equal(t, "Alpha", project.Title)

	_, err = executeCommand(t, "", "projects", "create", "alpha")
	assert.ErrorIs(t, err, viewmodel.ErrDuplicateTitle)
	_, err = executeCommand(t, "", "projects", "create", "   ")
	assert.ErrorIs(t, err, viewmodel.ErrTitleRequired)
	assert.Len(t, srv.RequestsMatching(http.MethodPost, "/api/projects"), 1)

	out, err = executeCommand(t, "", "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "first project")

	out, err = executeCommand(t, "n\n", "projects", "delete", itoa(project.ID))
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Empty(t, srv.RequestsMatching(http.MethodDelete, "/api/projects/"+itoa(project.ID)))

	out, err = executeCommand(t, "y\n", "projects", "delete", itoa(project.ID))
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted project")
	assert.Empty(t, srv.Projects())
}

func TestProjects_ListJSONAndSearch(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)
	srv.AddProject(userID, "Website", "")
	srv.AddProject(userID, "Garden", "")

	out, err := executeCommand(t, "", "projects", "list", "--json", "--search", "web")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Website"`)
	assert.NotContains(t, out, "Garden")
}

func TestProjects_ShowProgress(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)
	p := srv.AddProject(userID, "Website", "landing page")
	srv.AddTask(p.ID, "Design", true)
	srv.AddTask(p.ID, "Build", false)
	srv.AddTask(p.ID, "Ship", false)

	out, err := executeCommand(t, "", "projects", "show", itoa(p.ID))
	require.NoError(t, err)
	assert.Contains(t, out, "Website")
	assert.Contains(t, out, "33% complete (1/3 tasks)")
}

func TestProjects_ServerErrorMessage(t *testing.T) {
	srv := setupEnv(t)
	login(t, srv)

	_, err := executeCommand(t, "", "projects", "show", "999")
	require.Error(t, err)
	assert.Equal(t, "Project not found with id: 999", api.Message(err))
}

func TestTasks_Lifecycle(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)
	p := srv.AddProject(userID, "Website", "")
	pid := itoa(p.ID)

	out, err := executeCommand(t, "", "tasks", "add", pid, "Write docs", "--due", "2024-05-01", "-d", "README")
	require.NoError(t, err)
	assert.Contains(t, out, "Created task")

	tasks := srv.Tasks(p.ID)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, "2024-05-01T00:00:00", *tasks[0].DueDate)
	taskID := itoa(tasks[0].ID)

	_, err = executeCommand(t, "", "tasks", "add", pid, "WRITE DOCS")
	assert.ErrorIs(t, err, viewmodel.ErrDuplicateTitle)

	out, err = executeCommand(t, "", "tasks", "list", pid, "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Write docs")
	assert.Contains(t, out, "2024-05-01")

	_, err = executeCommand(t, "", "tasks", "complete", taskID)
	require.NoError(t, err)
	assert.True(t, srv.Tasks(p.ID)[0].Completed)

	out, err = executeCommand(t, "", "tasks", "list", pid, "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found")

	_, err = executeCommand(t, "", "tasks", "edit", pid, taskID, "--title", "Write guides")
	require.NoError(t, err)
	edited := srv.Tasks(p.ID)[0]
	assert.Equal(t, "Write guides", edited.Title)
	assert.Equal(t, "README", edited.Description)

	_, err = executeCommand(t, "", "tasks", "delete", "--yes", taskID)
	require.NoError(t, err)
	assert.Empty(t, srv.Tasks(p.ID))
}

func TestTasks_EditNeedsAChange(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)
	p := srv.AddProject(userID, "Website", "")
	task := srv.AddTask(p.ID, "Design", false)

	_, err := executeCommand(t, "", "tasks", "edit", itoa(p.ID), itoa(task.ID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
	assert.Empty(t, srv.RequestsMatching(http.MethodPatch, "/api/tasks/"+itoa(task.ID)))
}

func TestTasks_SearchSendsQuery(t *testing.T) {
	srv := setupEnv(t)
	userID := login(t, srv)
	p := srv.AddProject(userID, "Website", "")
	srv.AddTask(p.ID, "Write docs", true)
	srv.AddTask(p.ID, "Review docs", false)

	out, err := executeCommand(t, "", "tasks", "search", itoa(p.ID), "--title", "docs", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "Write docs")
	assert.NotContains(t, out, "Review docs")

	reqs := srv.RequestsMatching(http.MethodGet, "/api/tasks/project/"+itoa(p.ID)+"/search")
	require.Len(t, reqs, 1)
	assert.Equal(t, "completed=true&title=docs", reqs[0].Query)
	assert.Equal(t, itoa(userID), reqs[0].UserID)
}

func TestInvalidIDs(t *testing.T) {
	srv := setupEnv(t)
	login(t, srv)

	_, err := executeCommand(t, "", "tasks", "list", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid project id "abc"`)

	_, err = executeCommand(t, "", "tasks", "list", "1", "--status", "someday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestTelemetry_ExportsRequestSpans(t *testing.T) {
	srv := setupEnv(t)
	srv.AddUser("ada@example.com", "hunter2")

	root, e := newRootCmd(BuildInfo{Version: "test"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"login", "-e", "ada@example.com", "-p", "hunter2"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())

	// the export is flushed on close
	require.NoError(t, e.Close())

	data, err := os.ReadFile(os.Getenv("TASKBOARD_TELEMETRY_FILE"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "api.POST")
	assert.Contains(t, out, "taskboard_api_requests_total")
	assert.Contains(t, out, "service.name")
}

func TestTelemetry_Disabled(t *testing.T) {
	setupEnv(t)
	t.Setenv("TASKBOARD_TELEMETRY_ENABLED", "false")

	_, err := executeCommand(t, "", "whoami")
	require.Error(t, err)

	_, err = os.Stat(os.Getenv("TASKBOARD_TELEMETRY_FILE"))
	assert.True(t, os.IsNotExist(err))
}
