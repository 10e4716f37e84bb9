package tools

import (
	"github.com/please-run/please/internal/patch"
)

// Default builds the registry used by the turn engine: list_files,
// read_file, run_command, and apply_patch, in that registration order.
func Default() *Registry {
	r := NewRegistry()

	r.Register("list_files", Entry{
		Description: "List files under a path recursively with optional depth",
		Handler:     WithArgs(ListFiles),
		Params: []Param{
			{Name: "path", Desc: "Root path; defaults to current directory", Type: ParamString},
			{Name: "max_depth", Desc: "Max recursion depth; default 0, just the given directory", Type: ParamNumber},
		},
	})

	r.Register("read_file", Entry{
		Description: "Read a file's content with a byte limit",
		Handler:     WithArgs(ReadFile),
		Params: []Param{
			{Name: "path", Desc: "Absolute or relative path to file", Type: ParamString, Required: true},
			{Name: "max_bytes", Desc: "Maximum number of bytes to read; default 524288", Type: ParamNumber},
		},
	})

	r.Register("run_command", Entry{
		Description: "Run a command by argv: first element is program, rest are args",
		Handler:     WithArgs(RunCommand),
		Params: []Param{
			{Name: "argv", Desc: "Argument vector: [program, ...args]", Type: ParamString, Required: true},
		},
	})

	r.Register("apply_patch", Entry{
		Description: patch.Description,
		Handler:     WithArgs(func(a patch.Args) any { return patch.Call(a) }),
		Params: []Param{
			{Name: "path", Desc: "Target file path for simple overwrite (ignored for patch mode)", Type: ParamString},
			{Name: "patch", Desc: "Either raw content (overwrite) or an OpenAI patch", Type: ParamString, Required: true},
		},
	})

	return r
}
