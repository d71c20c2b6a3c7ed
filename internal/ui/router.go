package ui

import (
	"strings"
)

// Route identifies a screen
type Route int

const (
	RouteLogin Route = iota
	RouteRegister
	RouteProjects
	RouteProject
)

func (r Route) String() string {
	switch r {
	case RouteLogin:
		return "login"
	case RouteRegister:
		return "register"
	case RouteProjects:
		return "projects"
	case RouteProject:
		return "project"
	}
	return "unknown"
}

// Authenticator reports whether there is a signed-in session
type Authenticator interface {
	IsAuthenticated() bool
}

type routeEntry struct {
	pattern string
	route   Route
	guarded bool // requires a session
	guest   bool // only shown without a session
}

var routeTable = []routeEntry{
	{pattern: "/login", route: RouteLogin, guest: true},
	{pattern: "/register", route: RouteRegister, guest: true},
	{pattern: "/projects", route: RouteProjects, guarded: true},
	{pattern: "/projects/:id", route: RouteProject, guarded: true},
}

const homePath = "/projects"

// Match is a resolved route
type Match struct {
	Path   string
	Route  Route
	Params map[string]string
}

// Param returns a path parameter
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Router maps paths to screens and enforces the session guard
type Router struct {
	auth Authenticator
}

// NewRouter creates a router consulting auth on every resolve
func NewRouter(auth Authenticator) *Router {
	return &Router{auth: auth}
}

// Resolve maps path to a screen. "/" and unknown paths land on the project
// list, guarded screens without a session land on the login screen, and the
// login and register screens send signed-in users to the project list.
func (r *Router) Resolve(path string) Match {
	for redirects := 0; redirects < 3; redirects++ {
		entry, params, ok := lookup(path)
		if !ok {
			path = homePath
			continue
		}
		authed := r.auth.IsAuthenticated()
		if entry.guarded && !authed {
			path = "/login"
			continue
		}
		if entry.guest && authed {
			path = homePath
			continue
		}
		return Match{Path: path, Route: entry.route, Params: params}
	}
	// unreachable with the current table
	return Match{Path: "/login", Route: RouteLogin}
}

func lookup(path string) (routeEntry, map[string]string, bool) {
	segments := splitPath(path)
	for _, entry := range routeTable {
		if params, ok := matchPattern(splitPath(entry.pattern), segments); ok {
			return entry, params, true
		}
	}
	return routeEntry{}, nil, false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchPattern(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segments[i] == "" {
				return nil, false
			}
			params[name] = segments[i]
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return params, true
}
