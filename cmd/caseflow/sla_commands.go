package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"caseflow/internal/sla"
)

func newSLACommand(ctx *commandContext) *cobra.Command {
	slaCmd := &cobra.Command{
		Use:   "sla",
		Short: "Manage SLA rules and run breach checks",
	}
	slaCmd.PersistentFlags().String("actor", "", "User recorded in the audit trail (default cli)")
	slaCmd.AddCommand(newSLARulesCommand(ctx))
	slaCmd.AddCommand(newSLAImportCommand(ctx))
	slaCmd.AddCommand(newSLACheckCommand(ctx))
	return slaCmd
}

func newSLARulesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List configured SLA rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			rules, err := eng.SLA.Rules(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rules)
			}
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No SLA rules configured")
				return nil
			}
			rows := make([][]string, 0, len(rules))
			for _, rule := range rules {
				scope := rule.Scope
				if scope == "" {
					scope = "(global)"
				}
				rows = append(rows, []string{
					string(rule.Priority),
					scope,
					formatHours(rule.WarningThresholdHours),
					formatHours(rule.BreachThresholdHours),
					humanize.Time(rule.UpdatedAt),
				})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"Priority", "Scope", "Warning", "Breach", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSLAImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import SLA rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open rules file: %w", err)
			}
			defer f.Close()

			rules, err := eng.SLA.LoadRules(cmd.Context(), f, actorFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d SLA %s from %s\n",
				len(rules), plural(len(rules), "rule", "rules"), args[0])
			return nil
		},
	}
}

func newSLACheckCommand(ctx *commandContext) *cobra.Command {
	var scope string
	var notifyOwners bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify open tasks and report warnings and breaches",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			report, err := eng.SLA.CheckBreaches(cmd.Context(), scope, notifyOwners)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d open %s: %d breached, %d warning\n",
				report.Checked, plural(report.Checked, "task", "tasks"), len(report.Breaches), len(report.Warnings))
			rows := make([][]string, 0, len(report.Breaches)+len(report.Warnings))
			for _, status := range report.Breaches {
				rows = append(rows, slaRow(status))
			}
			for _, status := range report.Warnings {
				rows = append(rows, slaRow(status))
			}
			if len(rows) > 0 {
				printTable(out,
					[]string{"Task", "Case", "Owner", "Priority", "State", "Elapsed", "Remaining"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
			}
			if notifyOwners {
				fmt.Fprintf(out, "Notified %d %s\n", report.Notified, plural(report.Notified, "owner", "owners"))
			}
			for _, failure := range report.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %s: %s\n", failure.TaskID, failure.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Limit the check to one case")
	cmd.Flags().BoolVar(&notifyOwners, "notify", false, "Notify owners of tasks whose state got worse")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func slaRow(status *sla.Status) []string {
	remaining := "-"
	switch {
	case status.HoursOverdue != nil:
		remaining = "-" + formatHours(*status.HoursOverdue)
	case status.HoursRemaining != nil:
		remaining = formatHours(*status.HoursRemaining)
	}
	return []string{
		status.TaskID,
		status.CaseID,
		status.OwnerID,
		string(status.Priority),
		string(status.State),
		formatHours(status.ElapsedHours),
		remaining,
	}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64) + "h"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
