package tools

import (
	"bytes"
	"os/exec"
)

// RunCommandArgs are the run_command tool's arguments: an argument
// vector whose first element is the program to execute.
type RunCommandArgs struct {
	Argv []string `json:"argv"`
}

// RunCommand runs a command to completion (no truncation, no
// timeout) and reports its exit status alongside full stdout/stderr.
func RunCommand(args RunCommandArgs) any {
	if len(args.Argv) == 0 {
		return map[string]any{"error": "argv must be non-empty"}
	}

	cmd := exec.Command(args.Argv[0], args.Argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	err := cmd.Run()
	code := 0
	success := err == nil
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		return map[string]any{"error": err.Error()}
	}

	return map[string]any{
		"ok": true,
		"status": map[string]any{
			"code":    code,
			"success": success,
		},
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}
}
