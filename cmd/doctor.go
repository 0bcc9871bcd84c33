package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

// runDoctor probes every external dependency the agent's tool catalog
// shells out to, so a misconfigured deployment fails here rather than
// mid-conversation inside a tool result.
func runDoctor() {
	fmt.Println("forgeline doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND — using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Printf("  DataRoot: %s", cfg.DataRoot)
	if _, err := os.Stat(cfg.DataRoot); err != nil {
		fmt.Println(" (NOT FOUND — created on first run)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("  LLM:")
	fmt.Printf("    %-12s %s\n", "Model:", cfg.LLM.DefaultModel)
	checkSecret("API key", cfg.LLM.APIKey)

	fmt.Println()
	fmt.Println("  EDA Toolchain:")
	checkBinary("linter", cfg.Tools.LinterPath)
	checkBinary("simulator", cfg.Tools.SimulatorPath)
	checkBinary("cocotb", cfg.Tools.CocotbPath)
	checkBinary("formal", cfg.Tools.FormalPath)
	checkBinary("schematic", cfg.Tools.SchematicScript)

	fmt.Println()
	fmt.Println("  Synthesis:")
	fmt.Printf("    %-12s %s\n", "Image:", cfg.Synthesis.ContainerImage)
	checkBinary("docker", "docker")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSecret(name, value string) {
	if value == "" {
		fmt.Printf("    %-12s (not configured — set FORGELINE_LLM_API_KEY)\n", name+":")
		return
	}
	masked := value
	if len(value) > 8 {
		masked = value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}

func checkBinary(label, name string) {
	if name == "" {
		fmt.Printf("    %-12s (not configured)\n", label+":")
		return
	}
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s %s NOT FOUND\n", label+":", name)
	} else {
		fmt.Printf("    %-12s %s\n", label+":", path)
	}
}
