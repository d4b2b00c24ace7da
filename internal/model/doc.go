// Package model defines the domain types and value objects for the
// zhpack CLI.
//
// This package contains pure data structures with no external dependencies:
// archive entries, failure and symlink policies, the beautification report,
// and the error taxonomy (OpError with its ErrorKind). It also defines exit
// codes (ExitCode) and the CLIError type that carries them to the process
// exit.
package model
