// Package scripts runs package lifecycle scripts (preinst, install,
// postinst, prerm, remove, postrm) as external processes.
package scripts

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// interpreters maps a script extension to the command prefix that runs it
var interpreters = map[string][]string{
	".sh":  {"sh"},
	".py":  {"python"},
	".cmd": {"cmd", "/c"},
	".ps1": {"powershell", "-File"},
}

// probeOrder fixes which script wins when a package ships several
var probeOrder = []string{".sh", ".py", ".cmd", ".ps1"}

// ExecRunner executes lifecycle scripts with os/exec. Script output is
// forwarded to Out and Err.
type ExecRunner struct {
	Out io.Writer
	Err io.Writer
}

// NewExecRunner returns a runner that forwards script output to the
// process's stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Out: os.Stdout, Err: os.Stderr}
}

// Run executes the lifecycle script at base (a path without extension),
// probing the recognized extensions. A package without the script is a
// no-op; a script that exits non-zero is an error.
func (r *ExecRunner) Run(ctx context.Context, base string) error {
	script := probe(base)
	if script == "" {
		return nil
	}

	prefix := interpreters[strings.ToLower(filepath.Ext(script))]
	args := append(append([]string{}, prefix...), script)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Dir(script)
	cmd.Stdout = r.Out
	cmd.Stderr = r.Err

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script %s failed: %w", filepath.Base(script), err)
	}
	return nil
}

func probe(base string) string {
	for _, ext := range probeOrder {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
