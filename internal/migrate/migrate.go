// Package migrate reprocesses recorded tasks whose normalized rows were
// written under an older normalizer version.
package migrate

import (
	"log/slog"

	"github.com/AgentTrail/AgentTrail/internal/normalizer"
	"github.com/AgentTrail/AgentTrail/internal/store"
)

// Failure reports one task that could not be reprocessed.
type Failure struct {
	TaskID string
	Err    error
}

// Result summarizes a migration run.
type Result struct {
	Reprocessed int
	Rows        int
	Failed      []Failure
}

// Run reprocesses every stale task, or every task when all is true. One
// task's failure never stops the run; failed ids are reported in the
// result.
func Run(st *store.Store, all bool) (*Result, error) {
	var ids []string
	if all {
		tasks, err := st.ListTasks()
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			ids = append(ids, t.TaskID)
		}
	} else {
		stale, err := st.TasksBelowVersion(normalizer.Version)
		if err != nil {
			return nil, err
		}
		ids = stale
	}

	res := &Result{}
	for _, id := range ids {
		rows, err := st.ReprocessTask(id)
		if err != nil {
			slog.Error("Reprocess failed", "task", id, "error", err)
			res.Failed = append(res.Failed, Failure{TaskID: id, Err: err})
			continue
		}
		res.Reprocessed++
		res.Rows += rows
		slog.Info("Reprocessed task", "task", id, "rows", rows)
	}
	return res, nil
}
