package analytics

import (
	"time"

	"caseflow/internal/dependency"
	"caseflow/internal/store"
)

// StageProgress is the share of a stage's tasks that are done.
type StageProgress struct {
	StageID         string  `json:"stageId"`
	Total           int     `json:"total"`
	Done            int     `json:"done"`
	PercentComplete float64 `json:"percentComplete"`
}

// Metrics is the workflow summary for a scope.
type Metrics struct {
	Scope       string         `json:"scope,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
	TotalTasks  int            `json:"totalTasks"`
	ByStatus    map[string]int `json:"byStatus"`
	ByPriority  map[string]int `json:"byPriority"`
	Completed   int            `json:"completedCount"`
	// Overdue counts open tasks past their due date or in SLA breach.
	Overdue       int             `json:"overdueCount"`
	SLABreaches   int             `json:"slaBreaches"`
	SLAWarnings   int             `json:"slaWarnings"`
	Unclassified  int             `json:"unclassified"`
	StageProgress []StageProgress `json:"stageProgress"`
	// AverageCompletionHours is the mean length of closed time entries.
	AverageCompletionHours float64 `json:"averageCompletionTime"`
	TimedEntries           int     `json:"timedEntries"`
}

// DailyCount is the number of tasks completed on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Velocity is the completion rate over a trailing window.
type Velocity struct {
	Scope       string       `json:"scope,omitempty"`
	WindowDays  int          `json:"windowDays"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Completed   int          `json:"completed"`
	PerDay      float64      `json:"tasksPerDay"`
	Daily       []DailyCount `json:"daily"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// StageDuration is the mean time tasks spend in a stage.
type StageDuration struct {
	StageID   string  `json:"stageId"`
	MeanHours float64 `json:"meanHours"`
	Tasks     int     `json:"tasks"`
	Open      int     `json:"open"`
}

// UserLoad is a user's count of open tasks.
type UserLoad struct {
	UserID    string `json:"userId"`
	OpenTasks int    `json:"openTasks"`
}

// Bottlenecks lists where work is piling up.
type Bottlenecks struct {
	Scope             string                  `json:"scope,omitempty"`
	GeneratedAt       time.Time               `json:"generatedAt"`
	SlowestStages     []StageDuration         `json:"slowestStages"`
	BlockedTasks      []dependency.StartCheck `json:"blockedTasks"`
	OverloadedUsers   []UserLoad              `json:"overloadedUsers"`
	OverloadThreshold int                     `json:"overloadThreshold"`
}

// timeInStage is (completedAt or now) - (startedAt or createdAt), floored at zero.
func timeInStage(task *store.Task, now time.Time) time.Duration {
	end := now
	if task.CompletedAt != nil {
		end = *task.CompletedAt
	}
	d := end.Sub(task.EffectiveStart())
	if d < 0 {
		return 0
	}
	return d
}
