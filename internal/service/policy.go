package service

// FailureMode decides what a pipeline step does when one of its external
// dependencies errors out.
type FailureMode int

const (
	// Degrade continues the operation with reduced output.
	Degrade FailureMode = iota
	// Fail aborts the operation and surfaces the error.
	Fail
)

type Dependency string

const (
	DepPageFetch  Dependency = "page_fetch"
	DepDescriptor Dependency = "descriptor"
	DepEmbedding  Dependency = "embedding"
)

// failurePolicy is the single place that decides degrade versus fail for
// each external dependency. A preview survives a dead page or a flaky
// descriptor model, but a bookmark is never saved without an embedding
// because it would be invisible to search.
var failurePolicy = map[Dependency]FailureMode{
	DepPageFetch:  Degrade,
	DepDescriptor: Degrade,
	DepEmbedding:  Fail,
}

func ModeFor(dep Dependency) FailureMode {
	mode, ok := failurePolicy[dep]
	if !ok {
		return Fail
	}
	return mode
}
