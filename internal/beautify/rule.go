package beautify

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/shinji-kodama/zhpack/internal/model"
)

// processedMarkers are the characters whose presence marks a line as
// already tagged.
const processedMarkers = "[]"

// maxLineSize bounds a single line read from an item file.
const maxLineSize = 16 * 1024 * 1024

// tagTemplate inserts the captured identifier, in brackets, between the key
// and the value.
const tagTemplate = "${1}[${2}]${3}"

// DefaultRuleSpecs returns the built-in rules for Grim Dawn item and relic
// names, in evaluation order.
func DefaultRuleSpecs() []model.RuleSpec {
	return []model.RuleSpec{
		{Prefix: "tagComp", Pattern: `^(tagComp(\w\d{3})Name=)(.+)$`, Replace: tagTemplate},
		{Prefix: "tagGDX1Comp", Pattern: `^(tagGDX1Comp(\w\d{3})Name=)(.+)$`, Replace: tagTemplate},
		{Prefix: "tagRelic", Pattern: `^(tagRelic(\w\d{3})=)(.+)$`, Replace: tagTemplate},
		{Prefix: "tagGDX1Relic", Pattern: `^(tagGDX1Relic(\w\d{3})=)(.+)$`, Replace: tagTemplate},
		{Prefix: "tagGDX2Relic", Pattern: `^(tagGDX2Relic(\w\d{3})=)(.+)$`, Replace: tagTemplate},
	}
}

// RewriteRule is a compiled prefix-triggered rewrite.
type RewriteRule struct {
	Prefix  string
	Pattern string
	Replace string

	re *regexp.Regexp
}

// NewRule compiles a RewriteRule from its declarative form.
func NewRule(spec model.RuleSpec) (RewriteRule, error) {
	if spec.Prefix == "" {
		return RewriteRule{}, fmt.Errorf("rule with pattern %q has an empty prefix", spec.Pattern)
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return RewriteRule{}, fmt.Errorf("rule %q: invalid pattern: %w", spec.Prefix, err)
	}
	return RewriteRule{
		Prefix:  spec.Prefix,
		Pattern: spec.Pattern,
		Replace: spec.Replace,
		re:      re,
	}, nil
}

// Selects reports whether the rule is triggered by line.
func (r RewriteRule) Selects(line string) bool {
	return strings.HasPrefix(line, r.Prefix)
}

// Apply rewrites line and reports whether it changed. A line that does not
// start with the prefix, already contains a bracket, or does not match the
// pattern is returned unchanged.
func (r RewriteRule) Apply(line string) (string, bool) {
	if !r.Selects(line) || strings.ContainsAny(line, processedMarkers) {
		return line, false
	}
	if !r.re.MatchString(line) {
		return line, false
	}
	out := r.re.ReplaceAllString(line, r.Replace)
	return out, out != line
}

// Spec returns the declarative form of r.
func (r RewriteRule) Spec() model.RuleSpec {
	return model.RuleSpec{Prefix: r.Prefix, Pattern: r.Pattern, Replace: r.Replace}
}

// RuleSet is an ordered list of rules. The first rule whose prefix starts a
// line is the only one tried on that line.
type RuleSet struct {
	rules []RewriteRule
}

// NewRuleSet compiles specs in order.
func NewRuleSet(specs []model.RuleSpec) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]RewriteRule, 0, len(specs))}
	for _, spec := range specs {
		rule, err := NewRule(spec)
		if err != nil {
			return nil, err
		}
		rs.rules = append(rs.rules, rule)
	}
	return rs, nil
}

// DefaultRules returns the compiled built-in rule set.
func DefaultRules() *RuleSet {
	rs, err := NewRuleSet(DefaultRuleSpecs())
	if err != nil {
		panic(fmt.Sprintf("built-in rules do not compile: %v", err))
	}
	return rs
}

// Rules returns the rules in evaluation order.
func (rs *RuleSet) Rules() []RewriteRule {
	return append([]RewriteRule(nil), rs.rules...)
}

// Select returns the rule triggered by line, if any.
func (rs *RuleSet) Select(line string) (RewriteRule, bool) {
	for _, rule := range rs.rules {
		if rule.Selects(line) {
			return rule, true
		}
	}
	return RewriteRule{}, false
}

// Apply rewrites a single line with the rule it triggers. Lines that
// trigger no rule are returned unchanged.
func (rs *RuleSet) Apply(line string) (string, bool) {
	rule, ok := rs.Select(line)
	if !ok {
		return line, false
	}
	return rule.Apply(line)
}

// ApplyLines rewrites each line independently and returns the new lines
// with the number of lines that changed.
func (rs *RuleSet) ApplyLines(lines []string) ([]string, int) {
	out := make([]string, len(lines))
	changed := 0
	for i, line := range lines {
		var ok bool
		out[i], ok = rs.Apply(line)
		if ok {
			changed++
		}
	}
	return out, changed
}

// RewriteText rewrites line-oriented text. Lines may end in "\n", "\r\n" or
// a lone "\r"; the result is joined with "\n" and carries no trailing newline.
func (rs *RuleSet) RewriteText(text string) (string, int, error) {
	lines, err := splitLines(text)
	if err != nil {
		return "", 0, err
	}
	out, changed := rs.ApplyLines(lines)
	return strings.Join(out, "\n"), changed, nil
}

func splitLines(text string) ([]string, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanAnyLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to split lines: %w", err)
	}
	return lines, nil
}

// scanAnyLines is bufio.ScanLines extended to treat a lone "\r" as a line
// terminator.
func scanAnyLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		switch {
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i], nil
		}
		// "\r" at the end of the buffer: wait to see whether "\n" follows.
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
