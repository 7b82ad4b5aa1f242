package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Workflow metrics, velocity and bottlenecks",
	}
	analyticsCmd.PersistentFlags().String("scope", "", "Limit to one case")
	analyticsCmd.PersistentFlags().Bool("json", false, "Output JSON")
	analyticsCmd.AddCommand(newAnalyticsMetricsCommand(ctx))
	analyticsCmd.AddCommand(newAnalyticsVelocityCommand(ctx))
	analyticsCmd.AddCommand(newAnalyticsBottlenecksCommand(ctx))
	return analyticsCmd
}

func analyticsFlags(cmd *cobra.Command) (string, bool) {
	scope, _ := cmd.Flags().GetString("scope")
	asJSON, _ := cmd.Flags().GetBool("json")
	return scope, asJSON
}

func newAnalyticsMetricsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show task counts, SLA state and stage progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			scope, asJSON := analyticsFlags(cmd)
			m, err := eng.Analytics.Metrics(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, m)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tasks: %s (%d done, %d overdue)\n", humanize.Comma(int64(m.TotalTasks)), m.Completed, m.Overdue)
			fmt.Fprintf(out, "SLA: %d breached, %d warning, %d without a rule\n", m.SLABreaches, m.SLAWarnings, m.Unclassified)
			fmt.Fprintf(out, "Average time entry: %s over %d entries\n\n", formatHours(m.AverageCompletionHours), m.TimedEntries)

			printTable(out, []string{"Status", "Tasks"}, countRows(m.ByStatus), []columnAlignment{alignLeft, alignRight})
			printTable(out, []string{"Priority", "Tasks"}, countRows(m.ByPriority), []columnAlignment{alignLeft, alignRight})

			if len(m.StageProgress) > 0 {
				rows := make([][]string, 0, len(m.StageProgress))
				for _, sp := range m.StageProgress {
					rows = append(rows, []string{
						sp.StageID,
						strconv.Itoa(sp.Done),
						strconv.Itoa(sp.Total),
						strconv.FormatFloat(sp.PercentComplete, 'f', 1, 64) + "%",
					})
				}
				printTable(out, []string{"Stage", "Done", "Total", "Complete"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight})
			}
			return nil
		},
	}
}

func newAnalyticsVelocityCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "velocity",
		Short: "Show tasks completed per day over a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			scope, asJSON := analyticsFlags(cmd)
			v, err := eng.Analytics.Velocity(cmd.Context(), scope, days)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d completed in the last %d days (%.2f/day), since %s\n",
				v.Completed, v.WindowDays, v.PerDay, humanize.Time(v.From))
			rows := make([][]string, 0, len(v.Daily))
			for _, d := range v.Daily {
				if d.Count == 0 {
					continue
				}
				rows = append(rows, []string{d.Date, strconv.Itoa(d.Count)})
			}
			if len(rows) > 0 {
				printTable(out, []string{"Date", "Completed"}, rows, []columnAlignment{alignLeft, alignRight})
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Window length in days (default analytics.velocity_window_days)")
	return cmd
}

func newAnalyticsBottlenecksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bottlenecks",
		Short: "Show slow stages, blocked tasks and overloaded users",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			scope, asJSON := analyticsFlags(cmd)
			b, err := eng.Analytics.Bottlenecks(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, b)
			}
			out := cmd.OutOrStdout()
			if len(b.SlowestStages) > 0 {
				rows := make([][]string, 0, len(b.SlowestStages))
				for _, sd := range b.SlowestStages {
					rows = append(rows, []string{sd.StageID, formatHours(sd.MeanHours), strconv.Itoa(sd.Tasks), strconv.Itoa(sd.Open)})
				}
				printTable(out, []string{"Stage", "Mean time", "Tasks", "Open"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight})
			}
			if len(b.BlockedTasks) > 0 {
				rows := make([][]string, 0, len(b.BlockedTasks))
				for _, check := range b.BlockedTasks {
					rows = append(rows, []string{check.TaskID, joinIDs(check.BlockedBy)})
				}
				printTable(out, []string{"Blocked task", "Waiting on"}, rows, nil)
			} else {
				fmt.Fprintln(out, "No blocked tasks")
			}
			if len(b.OverloadedUsers) > 0 {
				rows := make([][]string, 0, len(b.OverloadedUsers))
				for _, load := range b.OverloadedUsers {
					rows = append(rows, []string{load.UserID, strconv.Itoa(load.OpenTasks)})
				}
				printTable(out, []string{"User", "Open tasks"}, rows, []columnAlignment{alignLeft, alignRight})
			} else {
				fmt.Fprintf(out, "No users above %d open tasks\n", b.OverloadThreshold)
			}
			return nil
		},
	}
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}
