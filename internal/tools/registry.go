package tools

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handler adapts an arbitrary typed tool function to the registry's
// uniform JSON-in/JSON-out shape.
type Handler func(args json.RawMessage) any

// Entry is one registered tool's description, handler, and parameters.
type Entry struct {
	Description string
	Handler     Handler
	Params      []Param
}

// Registry is a name-keyed dispatch table. It preserves registration
// order so tool listings sent to the model are stable rather than
// subject to Go's randomized map iteration.
type Registry struct {
	entries *orderedmap.OrderedMap[string, Entry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: orderedmap.New[string, Entry]()}
}

// Register adds a tool under name, overwriting any existing entry of
// the same name in place (preserving its original position).
func (r *Registry) Register(name string, e Entry) {
	r.entries.Set(name, e)
}

// Call decodes raw arguments and dispatches to the named tool's
// handler. An unknown tool name or undecodable arguments both yield
// {"error": ...} rather than a Go error, matching the handler
// contract the turn engine expects.
func (r *Registry) Call(name string, args json.RawMessage) any {
	e, ok := r.entries.Get(name)
	if !ok {
		return map[string]any{"error": "unknown tool: " + name}
	}
	return e.Handler(args)
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Entries returns registered tools in registration order, for
// building the model's tool-list prompt segment.
func (r *Registry) Entries() []struct {
	Name string
	Entry
} {
	out := make([]struct {
		Name string
		Entry
	}, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, struct {
			Name string
			Entry
		}{Name: pair.Key, Entry: pair.Value})
	}
	return out
}

// WithArgs decodes raw into a fresh Args value and invokes f, or
// returns {"error": ...} if decoding fails.
func WithArgs[Args any](f func(Args) any) Handler {
	return func(raw json.RawMessage) any {
		var args Args
		if err := json.Unmarshal(raw, &args); err != nil {
			return map[string]any{"error": err.Error()}
		}
		return f(args)
	}
}
