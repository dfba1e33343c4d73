package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// ExecLauncher launches processes with os/exec.
type ExecLauncher struct {
	logger *telemetry.Logger

	// Stdout and Stderr are attached to every launched process. Nil means
	// the parent's streams.
	Stdout *os.File
	Stderr *os.File
}

// NewExecLauncher creates a launcher that inherits the parent's standard
// streams.
func NewExecLauncher(logger *telemetry.Logger) *ExecLauncher {
	return &ExecLauncher{
		logger: logger.NewComponentLogger("launcher"),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Launch starts the configured process and returns without waiting for it
// to exit.
func (l *ExecLauncher) Launch(ctx context.Context, cfg engine.LaunchConfig) (engine.ProcessHandle, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("launch config has no path")
	}

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = MergeEnvironment(os.Environ(), cfg.Env)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Path, err)
	}

	h := &processHandle{
		id:        uuid.New().String(),
		cmd:       cmd,
		startedAt: time.Now(),
	}

	l.logger.WithField("path", cfg.Path).
		WithField("pid", cmd.Process.Pid).
		WithField("handle", h.id).
		Debug("process started")
	return h, nil
}

// MergeEnvironment layers overlay variables over a base "key=value"
// environment. Base entries with an overlaid key are replaced; overlay keys
// are appended in sorted order for deterministic output.
func MergeEnvironment(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return append([]string(nil), base...)
	}

	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, shadowed := overlay[key]; shadowed {
				continue
			}
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}

// processHandle is the ExecLauncher's ProcessHandle implementation.
type processHandle struct {
	id        string
	cmd       *exec.Cmd
	startedAt time.Time
}

func (h *processHandle) ID() string { return h.id }

func (h *processHandle) PID() int { return h.cmd.Process.Pid }

func (h *processHandle) StartedAt() time.Time { return h.startedAt }

// Wait blocks until the process exits. A non-zero exit status is returned
// as the code with a nil error; other failures surface as errors with code
// -1.
func (h *processHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to wait for process: %w", err)
}
