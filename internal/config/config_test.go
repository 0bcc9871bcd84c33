package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.MaxIterations != 40 {
		t.Errorf("MaxIterations = %d, want default 40", cfg.Agent.MaxIterations)
	}
	if cfg.Synthesis.StuckThreshold != 5*time.Minute {
		t.Errorf("StuckThreshold = %v, want 5m", cfg.Synthesis.StuckThreshold)
	}
	if cfg.Subprocess.MaxOutputBytes != 2<<20 {
		t.Errorf("MaxOutputBytes = %d, want 2 MiB", cfg.Subprocess.MaxOutputBytes)
	}
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"data_root": "/var/lib/forgeline",
		"agent": {"max_iterations": 10},
		"tools": {"default_filter_mode": "essential"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataRoot != "/var/lib/forgeline" {
		t.Errorf("DataRoot = %q", cfg.DataRoot)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Tools.DefaultFilterMode != "essential" {
		t.Errorf("DefaultFilterMode = %q", cfg.Tools.DefaultFilterMode)
	}
	// Untouched fields keep their defaults.
	if cfg.Gateway.ListenAddr != ":8787" {
		t.Errorf("ListenAddr = %q, want default :8787", cfg.Gateway.ListenAddr)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on malformed JSON, want error")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("FORGELINE_LLM_API_KEY", "sk-test-123")
	t.Setenv("FORGELINE_DATA_ROOT", "/tmp/fl-data")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want env value", cfg.LLM.APIKey)
	}
	if cfg.DataRoot != "/tmp/fl-data" {
		t.Errorf("DataRoot = %q, want env value", cfg.DataRoot)
	}
}

func TestLLMConfig_APIKeyNeverMarshalled(t *testing.T) {
	raw, err := json.Marshal(LLMConfig{APIKey: "sk-secret", DefaultModel: "m"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "sk-secret") {
		t.Errorf("marshalled config leaks the API key: %s", raw)
	}
}

func TestFlexibleStringSlice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"strings", `["a","b"]`, []string{"a", "b"}},
		{"numbers", `[1, 2]`, []string{"1", "2"}},
		{"mixed", `["a", 2, true]`, []string{"a", "2", "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleStringSlice
			if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if len(f) != len(tt.want) {
				t.Fatalf("got %v, want %v", f, tt.want)
			}
			for i := range f {
				if f[i] != tt.want[i] {
					t.Errorf("element %d = %q, want %q", i, f[i], tt.want[i])
				}
			}
		})
	}
}
