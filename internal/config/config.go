// Package config holds the root configuration for the forgeline agent core.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleStringSlice accepts both ["a","b"] and [1,2] in JSON config, since
// hand-edited config files regularly mix quoted and bare tokens.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the forgeline core.
type Config struct {
	DataRoot string `json:"data_root"` // root directory: DB file + workspace/<sessionId> subdirs

	LLM       LLMConfig       `json:"llm"`
	Agent     AgentConfig     `json:"agent"`
	Subprocess SubprocessConfig `json:"subprocess"`
	Synthesis SynthesisConfig `json:"synthesis"`
	Tools     ToolsConfig     `json:"tools"`
	Gateway   GatewayConfig   `json:"gateway"`
}

// LLMConfig describes the streaming tool-calling model the core drives.
// The endpoint and credential are opaque to the core.
type LLMConfig struct {
	Endpoint     string `json:"endpoint,omitempty"` // empty = provider default
	APIKey       string `json:"-"`                  // from env FORGELINE_LLM_API_KEY only, never persisted
	DefaultModel string `json:"default_model"`
}

// AgentConfig bounds a single turn of the ReAct loop.
type AgentConfig struct {
	MaxIterations  int           `json:"max_iterations"`   // hard iteration cap per user message
	TurnBudget     time.Duration `json:"turn_budget"`       // soft wall-clock budget per turn
	ContextWindow  int           `json:"context_window"`    // tokens; not read by the agent loop or the usage accounting
}

// SubprocessConfig bounds every external EDA tool invocation.
type SubprocessConfig struct {
	DefaultSoftTimeout time.Duration `json:"default_soft_timeout"`
	DefaultHardTimeout time.Duration `json:"default_hard_timeout"`
	MaxOutputBytes     int64         `json:"max_output_bytes"` // per stream (stdout/stderr) ring buffer cap
}

// SynthesisConfig configures the Job Supervisor's external synthesis flow.
type SynthesisConfig struct {
	ContainerImage string        `json:"container_image"`
	InvokeRecipe   []string      `json:"invoke_recipe"` // not read: the Job Supervisor builds its own "synth --top ..." argv from the job params
	HardTimeout    time.Duration `json:"hard_timeout"`
	StuckThreshold time.Duration `json:"stuck_threshold"`
}

// ToolsConfig sets the default tool-visibility filter new sessions start
// with, and the EDA toolchain binaries the verification/synthesis tools
// shell out to.
type ToolsConfig struct {
	DefaultFilterMode string   `json:"default_filter_mode"` // "all" | "essential" | "custom"
	DefaultCategories []string `json:"default_categories,omitempty"`

	LinterPath      string              `json:"linter_path"`
	LinterArgs      FlexibleStringSlice `json:"linter_args,omitempty"`
	SimulatorPath   string              `json:"simulator_path"`
	SimulatorArgs   FlexibleStringSlice `json:"simulator_args,omitempty"`
	CocotbPath      string              `json:"cocotb_path"`
	FormalPath      string              `json:"formal_path"`
	SchematicScript string              `json:"schematic_script"`
}

// GatewayConfig configures the network-facing transports.
type GatewayConfig struct {
	ListenAddr     string              `json:"listen_addr"`
	AllowedOrigins FlexibleStringSlice `json:"allowed_origins,omitempty"`
	RateLimitRPS   float64             `json:"rate_limit_rps"` // 0 = disabled
	MCPStdio       bool                `json:"mcp_stdio"`
	MCPSSEAddr     string              `json:"mcp_sse_addr,omitempty"`
	MCPHTTPAddr    string              `json:"mcp_http_addr,omitempty"`
}

// Default returns a Config with every field populated from the documented defaults.
func Default() *Config {
	return &Config{
		DataRoot: "./data",
		LLM: LLMConfig{
			DefaultModel: "claude-sonnet-4-5-20250929",
		},
		Agent: AgentConfig{
			MaxIterations: 40,
			TurnBudget:    10 * time.Minute,
			ContextWindow: 200_000,
		},
		Subprocess: SubprocessConfig{
			DefaultSoftTimeout: 30 * time.Second,
			DefaultHardTimeout: 120 * time.Second,
			MaxOutputBytes:     2 << 20, // 2 MiB
		},
		Synthesis: SynthesisConfig{
			ContainerImage: "forgeline/synth-oss:latest",
			HardTimeout:    30 * time.Minute,
			StuckThreshold: 5 * time.Minute,
		},
		Tools: ToolsConfig{
			DefaultFilterMode: "all",
			LinterPath:        "verilator",
			LinterArgs:        []string{"--lint-only", "-Wall"},
			SimulatorPath:     "iverilog",
			CocotbPath:        "make",
			FormalPath:        "sby",
			SchematicScript:   "netlistsvg",
		},
		Gateway: GatewayConfig{
			ListenAddr:   ":8787",
			RateLimitRPS: 0,
		},
	}
}
