// Package model defines the domain types for the zhpack CLI.
//
// The types in this package are transient: archive entries, rewrite rules and
// beautification reports are built during a single pass over one translation
// tree and discarded when the command returns. The only persistent outputs of
// zhpack are the archives it writes and the files it rewrites inside a
// working copy.
package model

import (
	"fmt"
	"strings"
)

// FailurePolicy selects how a permissive operation reacts to a non-critical
// failure such as a missing leaf file or a failed cleanup delete.
type FailurePolicy string

const (
	// PolicySkip logs the failure and carries on with the rest of the batch.
	PolicySkip FailurePolicy = "skip"

	// PolicyFail aborts the operation and returns the failure to the caller.
	PolicyFail FailurePolicy = "fail"
)

// String returns the string representation of FailurePolicy.
func (p FailurePolicy) String() string {
	return string(p)
}

// IsValid checks whether the FailurePolicy value is one of the
// predefined policies.
func (p FailurePolicy) IsValid() bool {
	switch p {
	case PolicySkip, PolicyFail:
		return true
	default:
		return false
	}
}

// ParseFailurePolicy converts a string to a FailurePolicy.
// Matching is case-insensitive. An empty string yields PolicySkip.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	if s == "" {
		return PolicySkip, nil
	}
	policy := FailurePolicy(strings.ToLower(s))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid failure policy: %q (valid: skip, fail)", s)
	}
	return policy, nil
}

// SymlinkPolicy selects how tree traversal treats symbolic links.
//
// Traversal never inherits the undefined behavior of following links
// blindly: a link is either ignored, or followed with a visited set of
// directories so that a link cycle is entered at most once.
type SymlinkPolicy string

const (
	// SymlinkSkip ignores symbolic links entirely. This is the default.
	SymlinkSkip SymlinkPolicy = "skip"

	// SymlinkFollow resolves links and treats them as their targets.
	SymlinkFollow SymlinkPolicy = "follow"
)

// String returns the string representation of SymlinkPolicy.
func (p SymlinkPolicy) String() string {
	return string(p)
}

// IsValid checks whether the SymlinkPolicy value is one of the
// predefined policies.
func (p SymlinkPolicy) IsValid() bool {
	switch p {
	case SymlinkSkip, SymlinkFollow:
		return true
	default:
		return false
	}
}

// ParseSymlinkPolicy converts a string to a SymlinkPolicy.
// Matching is case-insensitive. An empty string yields SymlinkSkip.
func ParseSymlinkPolicy(s string) (SymlinkPolicy, error) {
	if s == "" {
		return SymlinkSkip, nil
	}
	policy := SymlinkPolicy(strings.ToLower(s))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid symlink policy: %q (valid: skip, follow)", s)
	}
	return policy, nil
}

// ArchiveEntry describes one entry of a zip archive.
//
// Name is always relative and forward-slash separated. Directory entries
// end with "/" and carry no content.
type ArchiveEntry struct {
	// Name is the in-archive path of the entry (e.g., "汉化/text_en/tags_items.txt").
	Name string `json:"name"`

	// Source is the filesystem path the entry was read from when creating an
	// archive. Empty for entries listed from an existing archive.
	Source string `json:"source,omitempty"`

	// Size is the uncompressed size in bytes.
	Size int64 `json:"size"`

	// Dir reports whether the entry denotes a directory.
	Dir bool `json:"dir,omitempty"`
}

// Validate checks the ArchiveEntry invariants: a non-empty relative
// forward-slash name, and directory entries with a trailing separator.
func (e *ArchiveEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("archive entry: name must not be empty")
	}
	if strings.HasPrefix(e.Name, "/") || strings.Contains(e.Name, `\`) {
		return fmt.Errorf("archive entry: name %q must be a relative forward-slash path", e.Name)
	}
	if len(e.Name) >= 2 && e.Name[1] == ':' {
		return fmt.Errorf("archive entry: name %q must not carry a drive letter", e.Name)
	}
	if e.Dir != strings.HasSuffix(e.Name, "/") {
		return fmt.Errorf("archive entry: directory flag and trailing separator disagree for %q", e.Name)
	}
	if e.Dir && e.Size != 0 {
		return fmt.Errorf("archive entry: directory %q must not carry content", e.Name)
	}
	return nil
}

// FileFailure records a per-file failure that was isolated rather than
// aborting a batch.
type FileFailure struct {
	// Path is the file that could not be processed.
	Path string `json:"path"`

	// Kind classifies the failure (missing-source or io-failure).
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable failure description.
	Message string `json:"message"`
}

// Report summarizes one beautification pass.
type Report struct {
	// Archive is the path of the archive written from the working copy.
	Archive string `json:"archive"`

	// WorkCopy is the working directory that was archived. It no longer
	// exists unless the working copy was kept.
	WorkCopy string `json:"workCopy"`

	// FilesMatched is the number of files selected by the item-file pattern.
	FilesMatched int `json:"filesMatched"`

	// FilesRewritten lists the files that were rewritten, relative to the
	// working copy root.
	FilesRewritten []string `json:"filesRewritten"`

	// LinesChanged is the total number of lines altered by the rule set.
	LinesChanged int `json:"linesChanged"`

	// Failures lists files whose rewrite was skipped.
	Failures []FileFailure `json:"failures,omitempty"`
}

// Failed reports whether any file was skipped during the pass.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// RuleSpec is the declarative form of a rewrite rule, as written in the
// project configuration file.
type RuleSpec struct {
	// Prefix is the literal text a line must start with for the rule to
	// be selected.
	Prefix string `json:"prefix" yaml:"prefix" toml:"prefix"`

	// Pattern is the regular expression the selected line must match.
	Pattern string `json:"pattern" yaml:"pattern" toml:"pattern"`

	// Replace is the replacement template, with ${n} capture references.
	Replace string `json:"replace" yaml:"replace" toml:"replace"`
}
