package converter

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/parrot/core/internal/ports"
)

// ExecRunner runs the conversion unit as a standalone program. The
// caller bounds each attempt through ctx; a deadline hit kills the
// process and surfaces as err.
type ExecRunner struct {
	command string
}

// NewExecRunner creates a runner for the given converter executable.
func NewExecRunner(command string) *ExecRunner {
	return &ExecRunner{command: command}
}

var _ ports.SubprocessRunner = (*ExecRunner)(nil)

// Run executes the converter with the given arguments and captures both
// output streams.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, r.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
