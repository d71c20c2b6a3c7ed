// Package backendtest runs an in-memory version of the task service for tests.
// It implements the same REST surface as the real backend, issues signed JWTs
// on login, and records every request it receives.
package backendtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var signingKey = []byte("backendtest-signing-key")

// Request is one recorded call
type Request struct {
	Method    string
	Path      string
	Query     string
	UserID    string
	HasUserID bool
	Header    http.Header
	Body      string
}

// Project mirrors the backend's project response
type Project struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	CreatedAt      string  `json:"createdAt"`
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	Progress       float64 `json:"progress"`

	owner int64
}

// Task mirrors the backend's task response
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate"`
	Completed   bool    `json:"completed"`

	projectID int64
}

type user struct {
	id       int64
	email    string
	password string
}

type failure struct {
	status int
	body   string
}

// Server is a running fake backend
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]*user
	projects  map[int64]*Project
	tasks     map[int64]*Task
	nextID    int64
	requests  []Request
	failures  map[string]failure
	tokenTTL  time.Duration
	lastToken string
}

// NewServer starts a fake backend that is closed when the test ends
func NewServer(t testing.TB) *Server {
	s := &Server{
		users:    map[string]*user{},
		projects: map[int64]*Project{},
		tasks:    map[int64]*Task{},
		nextID:   1,
		failures: map[string]failure{},
		tokenTTL: time.Hour,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.record, s.injectFailures)

	api := r.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	api.GET("/projects", s.listProjects)
	api.POST("/projects", s.createProject)
	api.GET("/projects/:id", s.getProject)
	api.DELETE("/projects/:id", s.deleteProject)

	api.GET("/tasks/project/:projectId", s.listTasks)
	api.POST("/tasks/project/:projectId", s.createTask)
	api.GET("/tasks/project/:projectId/search", s.searchTasks)
	api.PATCH("/tasks/:id", s.updateTask)
	api.PATCH("/tasks/:id/complete", s.completeTask)
	api.DELETE("/tasks/:id", s.deleteTask)

	return r
}

// AddUser registers a user directly and returns its id
func (s *Server) AddUser(email, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password).id
}

func (s *Server) addUserLocked(email, password string) *user {
	u := &user{id: s.nextID, email: email, password: password}
	s.nextID++
	s.users[strings.ToLower(email)] = u
	return u
}

// AddProject seeds a project for owner and returns it
func (s *Server) AddProject(owner int64, title, description string) Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Project{
		ID:          s.nextID,
		Title:       title,
		Description: description,
		CreatedAt:   "2024-01-01T09:00:00",
		owner:       owner,
	}
	s.nextID++
	s.projects[p.ID] = p
	return *p
}

// AddTask seeds a task in projectID and returns it
func (s *Server) AddTask(projectID int64, title string, completed bool) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Task{ID: s.nextID, Title: title, Completed: completed, projectID: projectID}
	s.nextID++
	s.tasks[t.ID] = t
	return *t
}

// Tasks returns the tasks stored for projectID ordered by id
func (s *Server) Tasks(projectID int64) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasksLocked(projectID)
}

// Projects returns every stored project ordered by id
func (s *Server) Projects() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Project
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Requests returns a copy of every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsMatching returns recorded requests with the given method and path
func (s *Server) RequestsMatching(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests clears the request log
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Fail makes the next request to method+path answer with status and body
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

// SetTokenTTL changes the lifetime of tokens issued from now on. A negative
// ttl issues tokens that are already expired.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// LastToken returns the most recently issued token
func (s *Server) LastToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastToken
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(strings.NewReader(string(body)))

	values, has := c.Request.Header[http.CanonicalHeaderKey("userId")]
	userID := ""
	if has && len(values) > 0 {
		userID = values[0]
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Query:     c.Request.URL.RawQuery,
		UserID:    userID,
		HasUserID: has,
		Header:    c.Request.Header.Clone(),
		Body:      string(body),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	f, ok := s.failures[key]
	if ok {
		delete(s.failures, key)
	}
	s.mu.Unlock()
	if ok {
		c.String(f.status, f.body)
		c.Abort()
		return
	}
	c.Next()
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
}

func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "email and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok || u.password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Bad credentials"})
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: s.issueTokenLocked(u), UserID: u.id})
}

func (s *Server) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "email and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		c.String(http.StatusConflict, "Email already in use")
		return
	}
	u := s.addUserLocked(req.Email, req.Password)
	c.JSON(http.StatusOK, authResponse{Token: s.issueTokenLocked(u), UserID: u.id})
}

func (s *Server) issueTokenLocked(u *user) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   u.email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	s.lastToken = token
	return token
}

// caller resolves the userId header to a known user id
func (s *Server) caller(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("userId")
	if raw == "" {
		c.String(http.StatusBadRequest, "Required request header 'userId' is not present")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid userId header")
		return 0, false
	}
	for _, u := range s.users {
		if u.id == id {
			return id, true
		}
	}
	c.String(http.StatusNotFound, "User not found with id: "+raw)
	return 0, false
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// ownedProject loads a project and checks it belongs to the caller
func (s *Server) ownedProject(c *gin.Context, userID, projectID int64) (*Project, bool) {
	p, ok := s.projects[projectID]
	if !ok {
		c.String(http.StatusNotFound, "Project not found with id: "+strconv.FormatInt(projectID, 10))
		return nil, false
	}
	if p.owner != userID {
		c.String(http.StatusForbidden, "Access denied")
		return nil, false
	}
	return p, true
}

func (s *Server) ownedTask(c *gin.Context, userID, taskID int64) (*Task, bool) {
	t, ok := s.tasks[taskID]
	if !ok {
		c.String(http.StatusNotFound, "task not found wth ID"+strconv.FormatInt(taskID, 10))
		return nil, false
	}
	if p, ok := s.projects[t.projectID]; !ok || p.owner != userID {
		c.String(http.StatusForbidden, "Access denied")
		return nil, false
	}
	return t, true
}

func (s *Server) withStats(p *Project) Project {
	out := *p
	for _, t := range s.tasks {
		if t.projectID != p.ID {
			continue
		}
		out.TotalTasks++
		if t.Completed {
			out.CompletedTasks++
		}
	}
	if out.TotalTasks > 0 {
		out.Progress = float64(out.CompletedTasks) * 100 / float64(out.TotalTasks)
	}
	return out
}

func (s *Server) listProjects(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	out := []Project{}
	for _, p := range s.projects {
		if p.owner == userID {
			out = append(out, s.withStats(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) createProject(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Malformed JSON")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	p := &Project{
		ID:          s.nextID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   time.Now().Format("2006-01-02T15:04:05"),
		owner:       userID,
	}
	s.nextID++
	s.projects[p.ID] = p
	c.JSON(http.StatusOK, s.withStats(p))
}

func (s *Server) getProject(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, ok := s.ownedProject(c, userID, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.withStats(p))
}

func (s *Server) deleteProject(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.ownedProject(c, userID, id); !ok {
		return
	}
	delete(s.projects, id)
	for taskID, t := range s.tasks {
		if t.projectID == id {
			delete(s.tasks, taskID)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) tasksLocked(projectID int64) []Task {
	out := []Task{}
	for _, t := range s.tasks {
		if t.projectID == projectID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) listTasks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	if _, ok := s.ownedProject(c, userID, projectID); !ok {
		return
	}
	c.JSON(http.StatusOK, s.tasksLocked(projectID))
}

type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
}

func validDueDate(v *string) bool {
	if v == nil {
		return true
	}
	_, err := time.Parse("2006-01-02T15:04:05", *v)
	return err == nil
}

func (s *Server) createTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Malformed JSON")
		return
	}
	if !validDueDate(req.DueDate) {
		c.String(http.StatusBadRequest, "Invalid dueDate")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	if _, ok := s.ownedProject(c, userID, projectID); !ok {
		return
	}
	t := &Task{ID: s.nextID, DueDate: req.DueDate, projectID: projectID}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	s.nextID++
	s.tasks[t.ID] = t
	c.JSON(http.StatusOK, *t)
}

func (s *Server) updateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Malformed JSON")
		return
	}
	if !validDueDate(req.DueDate) {
		c.String(http.StatusBadRequest, "Invalid dueDate")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, ok := s.ownedTask(c, userID, id)
	if !ok {
		return
	}
	// Null fields are left untouched
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	c.JSON(http.StatusOK, *t)
}

func (s *Server) completeTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, ok := s.ownedTask(c, userID, id)
	if !ok {
		return
	}
	t.Completed = true
	c.JSON(http.StatusOK, *t)
}

func (s *Server) deleteTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.ownedTask(c, userID, id); !ok {
		return
	}
	delete(s.tasks, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) searchTasks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.caller(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	if _, ok := s.ownedProject(c, userID, projectID); !ok {
		return
	}

	title := strings.ToLower(c.Query("title"))
	description := strings.ToLower(c.Query("description"))
	completed := c.Query("completed")
	from, to := c.Query("dueDateFrom"), c.Query("dueDateTo")

	out := []Task{}
	for _, t := range s.tasksLocked(projectID) {
		if title != "" && !strings.Contains(strings.ToLower(t.Title), title) {
			continue
		}
		if description != "" && !strings.Contains(strings.ToLower(t.Description), description) {
			continue
		}
		if completed != "" && strconv.FormatBool(t.Completed) != completed {
			continue
		}
		if from != "" && (t.DueDate == nil || *t.DueDate < from) {
			continue
		}
		if to != "" && (t.DueDate == nil || *t.DueDate > to) {
			continue
		}
		out = append(out, t)
	}
	c.JSON(http.StatusOK, out)
}
