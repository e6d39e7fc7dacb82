package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Crown-Wars/rojo/pkg/logging"
)

// Version is the version of the rojo tool.
const Version = "0.1.0"

// fatal prints an error in red and exits with failure.
func fatal(err error) {
	color.Red("Error: %v", err)
	os.Exit(1)
}

func rootMain(command *cobra.Command, arguments []string) {
	// Print version information, if requested.
	if rootConfiguration.version {
		fmt.Println(Version)
		return
	}

	// If no flags were set, then print help information and bail.
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "rojo",
	Short: "Rojo synchronizes instance trees with filesystem layouts in both directions.",
	Run:   rootMain,
}

var rootConfiguration struct {
	help    bool
	version bool
}

func init() {
	// Disable timestamps on log output; the tool is interactive.
	log.SetFlags(0)

	// Disable color output when not attached to a terminal.
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	// Load any .env file so that environment-based configuration works the
	// same way in wrapped invocations. A missing file is fine.
	godotenv.Load()

	// Apply the configured log level.
	if name := os.Getenv("ROJO_LOG"); name != "" {
		if level, ok := logging.NameToLevel(name); ok {
			logging.SetLevel(level)
		}
	}

	// Bind flags to configuration. We manually add help to override the
	// default message, but Cobra still implements it automatically.
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")

	// Register commands.
	rootCommand.AddCommand(
		diffCommand,
		syncbackCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
