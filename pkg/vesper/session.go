package vesper

// Session is the part of a session the request lifecycle reads.
type Session interface {
	ID() string
	// Token is the bearer token of an authenticated session, or "".
	Token() string
}

// SessionStore finds and creates sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	// Lookup finds the session presented by the Authorization header or the
	// Cookie header values.
	Lookup(authorization, cookies string) (Session, bool)
	// New mints a fresh session.
	New() Session
}

const sessionCookieExpiry = "Sat, 01 Jan 2050 00:00:00 UTC"

// attachSession links the request to its session, minting one and issuing
// the session cookie when none was presented. It reports whether the request
// may proceed on a route with the given filter flag.
func attachSession(store SessionStore, req *Request, resp *Response, filter bool) bool {
	s, ok := store.Lookup(req.Authorization(), req.Cookies())
	if !ok {
		s = store.New()
		resp.AddHeader("Set-Cookie", "sessionId="+s.ID()+"; expires="+sessionCookieExpiry+"; path=/;")
	}
	_ = req.SetSession(s)
	if filter {
		return req.IsAuthenticated()
	}
	return true
}

func addCORSHeaders(resp *Response) {
	resp.AddHeader("Access-Control-Allow-Origin", "*")
	resp.AddHeader("Access-Control-Allow-Headers", "DNT,User-Agent,X-Requested-With,If-Modified-Since,Cache-Control,Content-Type,Range,Authorization")
	resp.AddHeader("Access-Control-Allow-Methods", "OPTIONS, POST, PUT, GET, DELETE")
	resp.AddHeader("Access-Control-Expose-Headers", "Content-Length,Content-Range")
}
