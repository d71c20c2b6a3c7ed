package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tgienger/taskboard/internal/backendtest"
	"github.com/tgienger/taskboard/internal/logging"
)

type staticIdentity struct {
	id    int64
	token string
}

func (s *staticIdentity) UserID() (int64, bool) { return s.id, s.id != 0 }
func (s *staticIdentity) Token() string         { return s.token }

type fakeProject struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestClient_SendsUserIDHeader(t *testing.T) {
	srv := backendtest.NewServer(t)
	userID := srv.AddUser("a@b.co", "secret")
	srv.AddProject(userID, "Alpha", "")

	c := New(srv.BaseURL(), &staticIdentity{id: userID, token: "tok"})

	var projects []fakeProject
	require.NoError(t, c.Get(context.Background(), "/projects", nil, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Alpha", projects[0].Title)

	reqs := srv.RequestsMatching(http.MethodGet, "/api/projects")
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].HasUserID)
	assert.Equal(t, "1", reqs[0].UserID)
	assert.Empty(t, reqs[0].Header.Get("Authorization"))
	assert.NotEmpty(t, reqs[0].Header.Get(HeaderRequestID))
}

func TestClient_IdentityReadAtSendTime(t *testing.T) {
	srv := backendtest.NewServer(t)
	first := srv.AddUser("one@b.co", "pw")
	second := srv.AddUser("two@b.co", "pw")

	id := &staticIdentity{id: first}
	c := New(srv.BaseURL(), id)

	require.NoError(t, c.Get(context.Background(), "/projects", nil, nil))
	id.id = second
	require.NoError(t, c.Get(context.Background(), "/projects", nil, nil))

	reqs := srv.RequestsMatching(http.MethodGet, "/api/projects")
	require.Len(t, reqs, 2)
	assert.Equal(t, "1", reqs[0].UserID)
	assert.Equal(t, "2", reqs[1].UserID)
}

func TestClient_NoSessionOmitsHeader(t *testing.T) {
	srv := backendtest.NewServer(t)
	c := New(srv.BaseURL(), &staticIdentity{})

	err := c.Get(context.Background(), "/projects", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].HasUserID)
}

func TestClient_AnonymousSendsNoIdentity(t *testing.T) {
	srv := backendtest.NewServer(t)
	srv.AddUser("a@b.co", "secret")

	c := New(srv.BaseURL(), &staticIdentity{id: 1}).Anonymous()

	var out struct {
		Token  string `json:"token"`
		UserID int64  `json:"userId"`
	}
	body := map[string]string{"email": "a@b.co", "password": "secret"}
	require.NoError(t, c.Post(context.Background(), "/auth/login", body, &out))
	assert.Equal(t, int64(1), out.UserID)
	assert.NotEmpty(t, out.Token)

	reqs := srv.RequestsMatching(http.MethodPost, "/api/auth/login")
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].HasUserID)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
}

func TestClient_Bearer(t *testing.T) {
	srv := backendtest.NewServer(t)
	userID := srv.AddUser("a@b.co", "secret")

	c := New(srv.BaseURL(), &staticIdentity{id: userID, token: "tok"}, WithBearer(true))
	require.NoError(t, c.Get(context.Background(), "/projects", nil, nil))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok", reqs[0].Header.Get("Authorization"))
}

func TestClient_PatchWithoutBody(t *testing.T) {
	srv := backendtest.NewServer(t)
	userID := srv.AddUser("a@b.co", "secret")
	p := srv.AddProject(userID, "Alpha", "")
	task := srv.AddTask(p.ID, "Write", false)

	c := New(srv.BaseURL(), &staticIdentity{id: userID})

	var out struct {
		Completed bool `json:"completed"`
	}
	require.NoError(t, c.Patch(context.Background(), "/tasks/"+itoa(task.ID)+"/complete", nil, &out))
	assert.True(t, out.Completed)

	reqs := srv.RequestsMatching(http.MethodPatch, "/api/tasks/"+itoa(task.ID)+"/complete")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Body)
	assert.Empty(t, reqs[0].Header.Get("Content-Type"))
}

func TestClient_QueryParameters(t *testing.T) {
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := New(ts.URL, &staticIdentity{id: 7})
	q := url.Values{}
	q.Set("title", "write docs")
	q.Set("completed", "false")

	var out []fakeProject
	require.NoError(t, c.Get(context.Background(), "/search", q, &out))
	assert.Equal(t, "write docs", got.Get("title"))
	assert.Equal(t, "false", got.Get("completed"))
	assert.Empty(t, out)
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"plain text", http.StatusNotFound, "Project not found with id: 9", "Project not found with id: 9"},
		{"json message", http.StatusUnauthorized, `{"error":"Unauthorized","message":"Bad credentials"}`, "Bad credentials"},
		{"json error only", http.StatusForbidden, `{"error":"Forbidden"}`, "Forbidden"},
		{"json string", http.StatusConflict, `"Email already in use"`, "Email already in use"},
		{"empty body", http.StatusInternalServerError, "", "request failed: 500 Internal Server Error"},
		{"empty json", http.StatusBadGateway, "{}", "request failed: 502 Bad Gateway"},
		{"brace but not json", http.StatusInternalServerError, "{oops: database is down", "{oops: database is down"},
		{"unterminated quote", http.StatusInternalServerError, `"upstream timed out`, `"upstream timed out`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := backendtest.NewServer(t)
			userID := srv.AddUser("a@b.co", "secret")
			srv.Fail(http.MethodGet, "/api/projects", tt.status, tt.body)

			c := New(srv.BaseURL(), &staticIdentity{id: userID})
			err := c.Get(context.Background(), "/projects", nil, nil)
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, Message(err))
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestClient_LongErrorBodyTruncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2000))
	}))
	defer ts.Close()

	err := New(ts.URL, nil).Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.Less(t, len(Message(err)), 600)
}

func TestClient_LongMultibyteErrorBodyKeepsRunesWhole(t *testing.T) {
	// 3-byte runes put the 512 byte cut in the middle of one
	body := strings.Repeat("界", 400)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	err := New(ts.URL, nil).Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	msg := Message(err)
	assert.True(t, utf8.ValidString(msg), "message is not valid UTF-8")
	assert.True(t, strings.HasSuffix(msg, "…"))
	assert.True(t, strings.HasPrefix(body, strings.TrimSuffix(msg, "…")))
	assert.LessOrEqual(t, len(strings.TrimSuffix(msg, "…")), maxMessageBytes)
}

func TestClient_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c := New(base, &staticIdentity{id: 1}, WithTimeout(time.Second))
	err := c.Get(context.Background(), "/projects", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "network error: could not reach the server", Message(err))
	assert.Equal(t, 1, strings.Count(err.Error(), "network error"), err.Error())
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestClient_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	var out []fakeProject
	err := New(ts.URL, nil).Get(context.Background(), "/", nil, &out)
	require.Error(t, err)
	assert.Equal(t, "unexpected response from server", Message(err))
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := backendtest.NewServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(srv.BaseURL(), nil).Get(ctx, "/projects", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv := backendtest.NewServer(t)
	userID := srv.AddUser("a@b.co", "secret")
	c := New(srv.BaseURL(), &staticIdentity{id: userID})

	require.NoError(t, c.Get(context.Background(), "/projects", nil, nil))
	require.Error(t, c.Delete(context.Background(), "/projects/404"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "api.GET", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "api.DELETE", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "Project not found with id: 404", spans[1].Status().Description)
}

func TestClient_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, logging.Options{Level: "debug"})
	require.NoError(t, err)

	srv := backendtest.NewServer(t)
	userID := srv.AddUser("a@b.co", "secret")
	c := New(srv.BaseURL(), &staticIdentity{id: userID}, WithLogger(logger))

	require.NoError(t, c.Get(context.Background(), "/projects", nil, nil))
	require.Error(t, c.Get(context.Background(), "/projects/77", nil, nil))

	out := buf.String()
	assert.Contains(t, out, "api request")
	assert.Contains(t, out, "api request failed")
	assert.Contains(t, out, "status=404")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
