package vesper

import (
	"strings"
	"sync"
)

// Router is a RouteTable keyed by method with a segment trie per method.
// Segments starting with ':' capture one segment; a segment starting with
// '*' captures the rest of the path.
type Router struct {
	mu          sync.RWMutex
	routes      map[string]*routeNode
	middlewares []Middleware
}

// routeNode children are keyed by literal segment, ":" for the parameter
// child and "*" for the wildcard child.
type routeNode struct {
	route     *Route
	children  map[string]*routeNode
	paramName string
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]*routeNode)}
}

// Use adds middleware applied to every route registered afterwards.
func (r *Router) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, middlewares...)
}

// GET registers a handler for GET requests.
func (r *Router) GET(path string, handler HandlerFunc) {
	r.Handle("GET", path, false, handler)
}

// POST registers a handler for POST requests.
func (r *Router) POST(path string, handler HandlerFunc) {
	r.Handle("POST", path, false, handler)
}

// PUT registers a handler for PUT requests.
func (r *Router) PUT(path string, handler HandlerFunc) {
	r.Handle("PUT", path, false, handler)
}

// DELETE registers a handler for DELETE requests.
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.Handle("DELETE", path, false, handler)
}

// Handle registers a handler for the specified method. filter marks routes
// that need an authenticated session.
func (r *Router) Handle(method, path string, filter bool, handler HandlerFunc) {
	if path == "" || path[0] != '/' {
		panic("path must begin with '/'")
	}
	if handler == nil {
		panic("nil handler for " + method + " " + path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.middlewares) > 0 {
		handler = Chain(r.middlewares...)(handler)
	}

	root, ok := r.routes[method]
	if !ok {
		root = &routeNode{children: make(map[string]*routeNode)}
		r.routes[method] = root
	}

	current := root
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			continue
		}

		key, name := segment, ""
		if segment[0] == ':' || segment[0] == '*' {
			key, name = segment[:1], segment[1:]
		}

		child, ok := current.children[key]
		if !ok {
			child = &routeNode{children: make(map[string]*routeNode), paramName: name}
			current.children[key] = child
		}
		current = child
	}

	current.route = &Route{Filter: filter, Handler: handler}
}

// Match finds the route for method and url. url must not carry a query
// string.
func (r *Router) Match(method, url string) (*Route, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.routes[method]
	if !ok {
		return nil, nil, false
	}

	trimmed := strings.Trim(url, "/")
	var params map[string]string

	current := root
	start := 0
	for i := 0; i <= len(trimmed); i++ {
		if i < len(trimmed) && trimmed[i] != '/' {
			continue
		}
		segment := trimmed[start:i]
		segStart := start
		start = i + 1
		if segment == "" {
			continue
		}

		if child, ok := current.children[segment]; ok {
			current = child
			continue
		}

		if child, ok := current.children[":"]; ok {
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[child.paramName] = segment
			current = child
			continue
		}

		if child, ok := current.children["*"]; ok {
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[child.paramName] = trimmed[segStart:]
			current = child
			break
		}

		return nil, nil, false
	}

	if current.route == nil {
		return nil, nil, false
	}
	return current.route, params, true
}
