// Package router implements the gateway's (method, path) route table:
// linear scan, exact-or-trailing-wildcard matching, CORS preflight, and a
// JSON 404 fallback.
package router

import (
	"strings"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

// Handler processes a matched request and builds the response bytes.
type Handler func(req *httpcodec.ParsedRequest) []byte

// Route is one (method, pattern, handler) registration. Patterns ending
// in "*" match as a prefix on the characters before the wildcard;
// otherwise matching is exact. The first matching route wins, so
// registration order is meaningful.
type Route struct {
	Method  httpcodec.Method
	Pattern string
	Handler Handler
}

func (rt Route) matches(method httpcodec.Method, path string) bool {
	if rt.Method != method {
		return false
	}
	if strings.HasSuffix(rt.Pattern, "*") {
		return strings.HasPrefix(path, rt.Pattern[:len(rt.Pattern)-1])
	}
	return rt.Pattern == path
}

// Router holds the registered route table.
type Router struct {
	routes []Route
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Handle registers a route. Order of calls determines match priority.
func (r *Router) Handle(method httpcodec.Method, pattern string, handler Handler) {
	r.routes = append(r.routes, Route{Method: method, Pattern: pattern, Handler: handler})
}

// Dispatch finds the first matching route and builds its response,
// short-circuiting OPTIONS into a CORS preflight reply and falling back
// to a JSON 404 when nothing matches. Every response carries
// Access-Control-Allow-Origin: *.
func (r *Router) Dispatch(req *httpcodec.ParsedRequest) []byte {
	if req.Method == httpcodec.MethodOPTIONS {
		return preflightResponse()
	}

	for _, rt := range r.routes {
		if rt.matches(req.Method, req.Path) {
			return rt.Handler(req)
		}
	}

	return notFoundResponse()
}

func preflightResponse() []byte {
	return httpcodec.NewResponse(204).
		Header("Access-Control-Allow-Origin", "*").
		Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS").
		Header("Access-Control-Allow-Headers", "Content-Type, Authorization").
		Body(nil).
		BytesNoLength()
}

func notFoundResponse() []byte {
	return httpcodec.NewResponse(404).
		Header("Content-Type", "application/json").
		Header("Access-Control-Allow-Origin", "*").
		Body([]byte(`{"error":"Not Found"}`)).
		Bytes()
}
