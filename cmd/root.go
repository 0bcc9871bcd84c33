// Package cmd implements forgeline's command-line surface: one persistent
// --config/--verbose pair, one subcommand per AddCommand call, Execute()
// as main's only entry point.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/forgeline/forgeline/cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "forgeline",
	Short: "forgeline — autonomous hardware-design agent core",
	Long:  "forgeline drives a ReAct agent loop over a fixed catalog of HDL verification and synthesis tools, exposed over chat-WebSocket, REST, and MCP transports.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.json or $FORGELINE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("forgeline %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("FORGELINE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
