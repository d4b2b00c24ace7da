// Package cli implements the cobra-based CLI commands for zhpack.
//
// Each subcommand (pack, beautify, extract, list, rules) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags, error
// output and exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbosity is the number of -v flags given.
	verbosity int

	// logToFile also writes log records to the XDG state log file.
	logToFile bool

	// rootDir overrides project root discovery.
	rootDir string

	// configPath overrides configuration file discovery.
	configPath string

	// outDir overrides the configured build directory.
	outDir string
)

// now is the clock used to stamp archive names.
var now = time.Now

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action; it only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zhpack",
		Short: "Package and beautify the Grim Dawn Chinese localization",
		Long: `zhpack packages the translation directory (汉化) into a zip archive.

The beautify command additionally tags item and relic names with their
identifiers, e.g. "tagRelicA123=Sword" becomes "tagRelicA123=[A123]Sword",
before packaging a second archive. The translation directory itself is never
modified by beautify; the rewrite command applies the same tagging to the
files it is given, in place.

Archives are written to the build directory (target) as ZH_<millis>.zip and
ZH_BEAUTIFY_<millis>.zip.`,

		// Errors are printed by Run in text or JSON form.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity, logToFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	flags.BoolVar(&logToFile, "log-file", false, "Also write logs to the state directory")
	flags.StringVar(&rootDir, "root", "", "Project root (default: nearest parent containing the translation directory)")
	flags.StringVar(&configPath, "config", "", "Configuration file (default: zhpack.{yaml,yml,toml,jsonc,json} at the project root)")
	flags.StringVar(&outDir, "out", "", "Directory receiving archives (default: the configured build directory)")

	rootCmd.AddCommand(NewPackCommand())
	rootCmd.AddCommand(NewBeautifyCommand())
	rootCmd.AddCommand(NewExtractCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewRulesCommand())
	rootCmd.AddCommand(NewRewriteCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the resulting
// exit code. This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	if code := Run(rootCmd); code != model.ExitSuccess {
		os.Exit(int(code))
	}
}

// Run executes rootCmd, prints any error to its error stream, and returns
// the exit code.
func Run(rootCmd *cobra.Command) model.ExitCode {
	err := rootCmd.Execute()
	if err == nil {
		return model.ExitSuccess
	}

	cliErr := toCLIError(err)
	printError(rootCmd.ErrOrStderr(), cliErr.Message, cliErr.Err)
	return cliErr.Code
}

// toCLIError maps err to a CLIError. CLIError values carry their own exit
// codes; domain errors map by kind; anything else is a general error.
func toCLIError(err error) *model.CLIError {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var opErr *model.OpError
	if errors.As(err, &opErr) {
		return &model.CLIError{Code: model.ExitCodeFor(err), Message: err.Error()}
	}

	return &model.CLIError{Code: model.ExitGeneralError, Message: err.Error()}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		_, _ = fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// VerboseLog records a progress message. It is shown on stderr from -v.
func VerboseLog(format string, args ...interface{}) {
	logger := logging.GetLogger("cli")
	logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
