// Package dependency maintains blocking and informational edges between tasks
// and answers whether a task may start.
//
// The blocking subgraph is kept acyclic: every edge write is checked with a
// depth-first reachability search from each new prerequisite back to the
// dependent task, and a write that would close a loop is rejected with
// errs.ErrCycleDetected before anything is stored. A task may start only when
// every blocking prerequisite is done; informational edges are reported but
// never block.
package dependency
