package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/beautify"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// NewRulesCommand creates the "rules" cobra command.
func NewRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [line...]",
		Short: "Show the rewrite rules or preview them on lines",
		Long: `Without arguments, print the active rewrite rules in evaluation order.
With arguments, print how each argument line would be rewritten.

Examples:
  zhpack rules
  zhpack rules 'tagRelicA123=Sword of Testing'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd.OutOrStdout(), args)
		},
	}
}

// rulePreview is the rewrite of one line by the rules command.
type rulePreview struct {
	Line    string `json:"line"`
	Result  string `json:"result"`
	Changed bool   `json:"changed"`
	Rule    string `json:"rule,omitempty"`
}

func runRules(w io.Writer, lines []string) error {
	p, err := loadProject(false)
	if err != nil {
		return err
	}

	rules, err := p.Config.RuleSet()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid rewrite rules", err)
	}

	if len(lines) == 0 {
		return printRules(w, rules)
	}

	previews := make([]rulePreview, 0, len(lines))
	for _, line := range lines {
		preview := rulePreview{Line: line}
		preview.Result, preview.Changed = rules.Apply(line)
		if rule, ok := rules.Select(line); ok {
			preview.Rule = rule.Prefix
		}
		previews = append(previews, preview)
	}

	if IsJSONOutput() {
		return printJSON(w, map[string]interface{}{"previews": previews})
	}
	for _, pv := range previews {
		if _, err := fmt.Fprintln(w, pv.Result); err != nil {
			return err
		}
	}
	return nil
}

// printRules outputs the rule set in evaluation order.
func printRules(w io.Writer, rules *beautify.RuleSet) error {
	specs := make([]model.RuleSpec, 0, len(rules.Rules()))
	for _, r := range rules.Rules() {
		specs = append(specs, r.Spec())
	}

	if IsJSONOutput() {
		return printJSON(w, map[string]interface{}{"rules": specs})
	}

	if _, err := fmt.Fprintf(w, "%-14s %-40s %s\n", "PREFIX", "PATTERN", "REPLACE"); err != nil {
		return err
	}
	for _, s := range specs {
		if _, err := fmt.Fprintf(w, "%-14s %-40s %s\n", s.Prefix, s.Pattern, s.Replace); err != nil {
			return err
		}
	}
	return nil
}
