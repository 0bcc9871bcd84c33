package subprocess

import (
	"context"
	"testing"
	"time"

	"github.com/forgeline/forgeline/internal/apperr"
)

func TestRunner_CapturesStdoutAndExitCode(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), Request{
		Path: "sh",
		Args: []string{"-c", "echo hello; exit 0"},
		Hard: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
	}
}

func TestRunner_NonzeroExitIsNotAnError(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), Request{
		Path: "sh",
		Args: []string{"-c", "echo oops >&2; exit 7"},
		Hard: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (nonzero exit is a result, not an error)", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", res.ExitCode)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops\n")
	}
}

func TestRunner_ToolMissing(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), Request{
		Path: "definitely-not-a-real-binary-xyz",
		Hard: 5 * time.Second,
	})
	if apperr.KindOf(err) != apperr.KindToolMissing {
		t.Fatalf("Run() kind = %v, want ToolMissing", apperr.KindOf(err))
	}
}

func TestRunner_HardTimeoutKillsTree(t *testing.T) {
	r := New()
	start := time.Now()
	_, err := r.Run(context.Background(), Request{
		Path: "sh",
		Args: []string{"-c", "sleep 30"},
		Hard: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)
	if apperr.KindOf(err) != apperr.KindTimeout {
		t.Fatalf("Run() kind = %v, want Timeout", apperr.KindOf(err))
	}
	if elapsed > 5*time.Second {
		t.Fatalf("Run() took %s, expected a fast kill well under the 30s sleep", elapsed)
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, Request{
		Path: "sh",
		Args: []string{"-c", "sleep 30"},
		Hard: 30 * time.Second,
	})
	if apperr.KindOf(err) != apperr.KindCancelled {
		t.Fatalf("Run() kind = %v, want Cancelled", apperr.KindOf(err))
	}
}

func TestRunner_OutputTruncatedWithMarker(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), Request{
		Path:   "sh",
		Args:   []string{"-c", "head -c 1000 /dev/zero | tr '\\0' 'a'"},
		Hard:   5 * time.Second,
		MaxOut: 100,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Stdout) > 100+len(truncationMarker) {
		t.Fatalf("Stdout length %d exceeds cap+marker", len(res.Stdout))
	}
	if !containsMarker(res.Stdout) {
		t.Errorf("Stdout missing truncation marker: %q", res.Stdout)
	}
}

func containsMarker(s string) bool {
	return len(s) >= len(truncationMarker) && (func() bool {
		for i := 0; i+len(truncationMarker) <= len(s); i++ {
			if s[i:i+len(truncationMarker)] == truncationMarker {
				return true
			}
		}
		return false
	})()
}
