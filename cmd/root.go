package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for the mcpd CLI.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// rootCmd is mcpd's base command. Unlike the teacher's multi-command tree
// (get/list/start/stop/agent/auth/...), mcpd only ever runs one thing: the
// daemon itself.
var rootCmd = &cobra.Command{
	Use:   "mcpd",
	Short: "A multi-tenant Model Context Protocol daemon",
	Long: `mcpd resolves per-tenant configuration, loads code modules, dispatches
tool/resource/prompt invocations, and fans results out over Server-Sent
Events to every live subscription belonging to the calling user.`,
	SilenceUsage: true,
}

// SetVersion sets the version reported by `mcpd --version`.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point, called from main.main.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpd version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}
