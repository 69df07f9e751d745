package domain

import (
	"path"
	"strings"
)

// Reserved artifact names used for foreach and transition bookkeeping.
const (
	ArtifactForeachValues        = "_foreach_values"
	ArtifactUnboundedForeach     = "_unbounded_foreach"
	ArtifactControlMapperTasks   = "_control_mapper_tasks"
	ArtifactControlIsMapperZero  = "_control_task_is_mapper_zero"
	ArtifactParallelUBFIter      = "_parallel_ubf_iter"
	ArtifactForeachVar           = "_foreach_var"
	ArtifactForeachNumSplits     = "_foreach_num_splits"
	ArtifactForeachStack         = "_foreach_stack"
	ArtifactTransition           = "_transition"
	ArtifactTaskOK               = "_task_ok"
	ArtifactGraphInfo            = "_graph_info"
)

// InternalArtifacts are never merged at a join unless explicitly included.
var InternalArtifacts = map[string]struct{}{
	ArtifactForeachValues:       {},
	ArtifactUnboundedForeach:    {},
	ArtifactControlMapperTasks:  {},
	ArtifactControlIsMapperZero: {},
	ArtifactParallelUBFIter:     {},
}

// IsInternalArtifact reports whether name belongs to the internal set.
func IsInternalArtifact(name string) bool {
	_, ok := InternalArtifacts[name]
	return ok
}

// ArtifactRecord identifies one stored artifact of one branch.
type ArtifactRecord struct {
	Name        string `json:"name"`
	Branch      string `json:"branch,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Blob is the stored form of an artifact.
type Blob struct {
	Fingerprint string `json:"fingerprint"`
	Data        []byte `json:"data"`
}

// TaskPath addresses the datastore of one task: flow/run/step/task.
type TaskPath struct {
	Flow string `json:"flow"`
	Run  string `json:"run"`
	Step string `json:"step"`
	Task string `json:"task"`
}

func (p TaskPath) String() string {
	return path.Join(p.Flow, p.Run, p.Step, p.Task)
}

// ParseTaskPath parses "flow/run/step/task" or, given a default flow, "run/step/task".
func ParseTaskPath(s, flow string) (TaskPath, bool) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	switch {
	case len(parts) == 4:
		return TaskPath{Flow: parts[0], Run: parts[1], Step: parts[2], Task: parts[3]}, true
	case len(parts) == 3 && flow != "":
		return TaskPath{Flow: flow, Run: parts[0], Step: parts[1], Task: parts[2]}, true
	default:
		return TaskPath{}, false
	}
}
