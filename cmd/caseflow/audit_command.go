package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"caseflow/internal/store"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var entityType, entityID, caseID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit trail entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			var entries []*store.AuditEntry
			if caseID != "" {
				entries, err = eng.Audit.QueryByCase(cmd.Context(), caseID, limit)
			} else {
				entries, err = eng.Audit.Query(cmd.Context(), entityType, entityID, limit)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					humanize.Time(entry.Timestamp),
					entry.EntityType + ":" + entry.EntityID,
					entry.Action,
					entry.UserID,
					change(entry.PreviousValue, entry.NewValue),
				})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"When", "Entity", "Action", "User", "Change"},
				rows,
				nil,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Filter by entity id")
	cmd.Flags().StringVar(&caseID, "case", "", "Show every entry for a case")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func change(prev, next *string) string {
	switch {
	case prev == nil && next == nil:
		return ""
	case prev == nil:
		return *next
	case next == nil:
		return *prev + " ->"
	default:
		return *prev + " -> " + *next
	}
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
