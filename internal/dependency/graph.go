package dependency

import (
	"sort"

	"caseflow/internal/store"
)

// Graph is an adjacency list of blocking edges: task -> prerequisites.
type Graph map[string][]string

// NewGraph builds a Graph from the blocking edges in deps.
func NewGraph(deps []store.Dependency) Graph {
	g := make(Graph)
	for _, dep := range deps {
		if dep.Type != store.DependencyBlocking {
			continue
		}
		g[dep.TaskID] = append(g[dep.TaskID], dep.DependsOn)
	}
	return g
}

// FindCycle reports the path that would close a loop if taskID's blocking
// prerequisites were replaced with targets. The returned path starts and ends
// at taskID; nil means the replacement is safe.
func (g Graph) FindCycle(taskID string, targets []string) []string {
	for _, target := range targets {
		if target == taskID {
			return []string{taskID, taskID}
		}
	}

	visited := make(map[string]bool)
	var path []string

	var reaches func(node string) bool
	reaches = func(node string) bool {
		if node == taskID {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		path = append(path, node)
		for _, next := range g[node] {
			if reaches(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	for _, target := range targets {
		path = path[:0]
		if reaches(target) {
			cycle := make([]string, 0, len(path)+2)
			cycle = append(cycle, taskID)
			cycle = append(cycle, path...)
			return append(cycle, taskID)
		}
	}
	return nil
}

// With returns a copy of g where taskID's prerequisites are targets.
func (g Graph) With(taskID string, targets []string) Graph {
	out := make(Graph, len(g)+1)
	for k, v := range g {
		out[k] = v
	}
	if len(targets) == 0 {
		delete(out, taskID)
	} else {
		out[taskID] = append([]string(nil), targets...)
	}
	return out
}

// Acyclic reports whether the graph has no cycles.
func (g Graph) Acyclic() bool {
	const (
		unvisited = iota
		inProgress
		finished
	)
	state := make(map[string]int, len(g))

	var visit func(node string) bool
	visit = func(node string) bool {
		switch state[node] {
		case inProgress:
			return false
		case finished:
			return true
		}
		state[node] = inProgress
		for _, next := range g[node] {
			if !visit(next) {
				return false
			}
		}
		state[node] = finished
		return true
	}

	nodes := make([]string, 0, len(g))
	for node := range g {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if !visit(node) {
			return false
		}
	}
	return true
}

// StartCheck is the answer to "can this task start".
type StartCheck struct {
	TaskID        string   `json:"taskId"`
	CanStart      bool     `json:"canStart"`
	BlockedBy     []string `json:"blockedBy"`
	Informational []string `json:"informational,omitempty"`
}

// Evaluate decides whether taskID may start given its outgoing edges and a
// status lookup. A prerequisite the lookup cannot find counts as unmet.
func Evaluate(taskID string, deps []store.Dependency, status func(id string) (store.TaskStatus, bool)) StartCheck {
	check := StartCheck{TaskID: taskID, BlockedBy: []string{}}
	for _, dep := range deps {
		if dep.TaskID != taskID {
			continue
		}
		if dep.Type == store.DependencyInformational {
			check.Informational = append(check.Informational, dep.DependsOn)
			continue
		}
		if st, ok := status(dep.DependsOn); !ok || st != store.StatusDone {
			check.BlockedBy = append(check.BlockedBy, dep.DependsOn)
		}
	}
	sort.Strings(check.BlockedBy)
	sort.Strings(check.Informational)
	check.CanStart = len(check.BlockedBy) == 0
	return check
}
