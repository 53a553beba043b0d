package vesper

// HandlerFunc handles a request. It fills in resp and calls resp.Complete,
// possibly later from another goroutine. A returned error, or a panic,
// before completion is answered by the ErrorHandler.
type HandlerFunc func(req *Request, resp *Response) error

// Middleware wraps a HandlerFunc with additional behaviour.
type Middleware func(HandlerFunc) HandlerFunc

// Chain combines multiple middlewares into a single middleware. The first
// one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Route is a registered handler. Filter routes require an authenticated
// session when sessions are enabled.
type Route struct {
	Filter  bool
	Handler HandlerFunc
}

// RouteTable resolves a request to a route. Implementations must be safe
// for concurrent use.
type RouteTable interface {
	Match(method, url string) (*Route, map[string]string, bool)
}
