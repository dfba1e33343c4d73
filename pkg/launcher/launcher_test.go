package launcher

import (
	"context"
	"runtime"
	"testing"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

func TestMergeEnvironmentOverridesAndAppends(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/home/u", "LANG=C"}
	merged := MergeEnvironment(base, map[string]string{
		"HOME":         "/override",
		"MD_FRAMEWORK": "net/4.0",
	})

	want := map[string]string{
		"PATH":         "/usr/bin",
		"HOME":         "/override",
		"LANG":         "C",
		"MD_FRAMEWORK": "net/4.0",
	}
	got := make(map[string]string)
	for _, kv := range merged {
		for k, v := range want {
			if kv == k+"="+v {
				got[k] = v
			}
		}
	}
	if len(got) != len(want) {
		t.Errorf("merged environment %v, want entries %v", merged, want)
	}
	if len(merged) != len(want) {
		t.Errorf("expected %d entries, got %d", len(want), len(merged))
	}
}

func TestMergeEnvironmentDoesNotMutateBase(t *testing.T) {
	base := []string{"A=1"}
	_ = MergeEnvironment(base, map[string]string{"A": "2"})
	if base[0] != "A=1" {
		t.Errorf("base was mutated: %v", base)
	}
}

func TestLaunchRequiresPath(t *testing.T) {
	l := NewExecLauncher(telemetry.NewNopLogger())
	if _, err := l.Launch(context.Background(), engine.LaunchConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLaunchAndWait(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	l := NewExecLauncher(telemetry.NewNopLogger())
	h, err := l.Launch(context.Background(), engine.LaunchConfig{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 0"},
	})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if h.ID() == "" {
		t.Error("expected a handle id")
	}
	if h.PID() <= 0 {
		t.Errorf("expected a positive pid, got %d", h.PID())
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestWaitReportsNonZeroExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	l := NewExecLauncher(telemetry.NewNopLogger())
	h, err := l.Launch(context.Background(), engine.LaunchConfig{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
}
