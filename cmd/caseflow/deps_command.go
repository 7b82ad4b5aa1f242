package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/errs"
)

type depsView struct {
	TaskID        string   `json:"taskId"`
	Blocking      []string `json:"blocking"`
	Informational []string `json:"informational"`
	Dependents    []string `json:"dependents"`
	CanStart      bool     `json:"canStart"`
	BlockedBy     []string `json:"blockedBy"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect task dependencies",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task's prerequisites, dependents and start readiness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			taskID := args[0]
			task, err := eng.Store.GetTask(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			if task == nil {
				return errs.Wrap(errs.ErrNotFound, "cli", "deps show", "task "+taskID+" not found", nil)
			}
			set, err := eng.Dependencies.Get(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			check, err := eng.Dependencies.CanStart(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			dependents, err := eng.Dependencies.Dependents(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			view := depsView{
				TaskID:        taskID,
				Blocking:      set.Blocking,
				Informational: set.Informational,
				Dependents:    make([]string, 0, len(dependents)),
				CanStart:      check.CanStart,
				BlockedBy:     check.BlockedBy,
			}
			for _, dep := range dependents {
				view.Dependents = append(view.Dependents, dep.TaskID)
			}
			if asJSON {
				return writeJSON(cmd, view)
			}

			readiness := "ready to start"
			if !view.CanStart {
				readiness = "blocked by " + joinIDs(view.BlockedBy)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s): %s\n", task.ID, task.Status, task.Title, readiness)
			printTable(cmd.OutOrStdout(),
				[]string{"Relation", "Tasks"},
				[][]string{
					{"blocking", joinIDs(view.Blocking)},
					{"informational", joinIDs(view.Informational)},
					{"dependents", joinIDs(view.Dependents)},
				},
				nil,
			)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	depsCmd.AddCommand(show)
	return depsCmd
}
