package parallel

import "caseflow/internal/store"

// Status is the derived completion state of a group.
type Status struct {
	GroupID        string               `json:"groupId"`
	StageID        string               `json:"stageId"`
	Rule           store.CompletionRule `json:"completionRule"`
	Threshold      *int                 `json:"completionThreshold,omitempty"`
	CompletedCount int                  `json:"completedCount"`
	TotalCount     int                  `json:"totalCount"`
	IsComplete     bool                 `json:"isComplete"`
	PendingTaskIDs []string             `json:"pendingTaskIds"`
}

// Evaluate applies the group's rule to the member tasks. Members absent from
// tasks count as not done.
func Evaluate(group *store.ParallelGroup, tasks map[string]*store.Task) Status {
	status := Status{
		GroupID:        group.ID,
		StageID:        group.StageID,
		Rule:           group.CompletionRule,
		Threshold:      group.CompletionThreshold,
		TotalCount:     len(group.TaskIDs),
		PendingTaskIDs: []string{},
	}
	for _, id := range group.TaskIDs {
		if task, ok := tasks[id]; ok && task.IsDone() {
			status.CompletedCount++
			continue
		}
		status.PendingTaskIDs = append(status.PendingTaskIDs, id)
	}
	status.IsComplete = complete(group.CompletionRule, group.CompletionThreshold, status.CompletedCount, status.TotalCount)
	return status
}

func complete(rule store.CompletionRule, threshold *int, done, total int) bool {
	if total == 0 {
		return false
	}
	switch rule {
	case store.RuleAll:
		return done == total
	case store.RuleAny:
		return done >= 1
	case store.RulePercentage:
		if threshold == nil {
			return false
		}
		// done/total*100 >= threshold without float rounding.
		return done*100 >= *threshold*total
	default:
		return false
	}
}
