// Package tool implements the gateway's named tool table: registration,
// execution, and provider-shaped catalog rendering.
package tool

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// Result is what Execute returns for one invocation.
type Result struct {
	Output    string `json:"output"`
	IsError   bool   `json:"is_error"`
	ExitCode  int    `json:"exit_code"`
	Forwarded bool   `json:"-"`
}

// Executor runs one tool invocation given its raw JSON arguments.
type Executor func(argsJSON string) Result

// Definition is one registered tool.
type Definition struct {
	Name                 string
	Description          string
	ParameterSchemaJSON  string
	RequiresSandbox      bool
	RequiresConfirmation bool
	Run                  Executor
}

// Registry is a name-keyed table of tools. Thread-safe: handlers and
// worker-pool goroutines may call Execute concurrently, grounded on the
// teacher's agent.Registry RWMutex discipline.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry returns an empty registry with the built-in tools already
// registered.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Definition)}
	registerBuiltins(r)
	return r
}

// Register inserts or replaces a tool by name. Re-registration replaces
// the previous entry and logs a warning — grounded on agent.Registry.Touch's
// auto-register/update idiom.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		slog.Warn("tool registration replaced an existing entry", "name", def.Name)
	}
	r.tools[def.Name] = def
}

// Execute looks up name and invokes its executor with argsJSON. An
// unknown name yields a fixed unknown-tool error result.
func (r *Registry) Execute(name, argsJSON string) Result {
	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return Result{
			Output:   "error: unknown tool '" + name + "'",
			IsError:  true,
			ExitCode: -1,
		}
	}
	return def.Run(argsJSON)
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// catalogEntry is one element of the Anthropic-shaped tool catalog.
type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// Catalog emits the provider-shaped JSON array of tool definitions. A
// tool whose parameter schema fails to parse falls back to an empty
// object schema.
func (r *Registry) Catalog() ([]byte, error) {
	defs := r.List()
	entries := make([]catalogEntry, 0, len(defs))

	for _, d := range defs {
		var schema any
		if err := json.Unmarshal([]byte(d.ParameterSchemaJSON), &schema); err != nil {
			schema = map[string]any{}
		}
		entries = append(entries, catalogEntry{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: schema,
		})
	}

	return json.Marshal(entries)
}
