package orchestrator

// Result is the outcome of a mutating control-plane operation.
type Result int

const (
	// ResultFailed indicates the operation aborted without leaving partial
	// state behind.
	ResultFailed Result = iota
	// ResultSucceeded indicates the operation completed.
	ResultSucceeded
	// ResultExists indicates a no-op because the desired state already holds.
	ResultExists
	// ResultNotExists indicates a no-op because the target is absent.
	ResultNotExists
)

func (r Result) String() string {
	switch r {
	case ResultFailed:
		return "failed"
	case ResultSucceeded:
		return "succeeded"
	case ResultExists:
		return "exists"
	case ResultNotExists:
		return "not_exists"
	}
	return "unknown"
}

// ItemState tags a virtual host, domain, or origin during reconciliation.
type ItemState int

const (
	// ItemStateUnknown marks an invalid or uninitialized item.
	ItemStateUnknown ItemState = iota
	// ItemStateApplied marks a committed, live item.
	ItemStateApplied
	// ItemStateNeedToCheck marks an item pending comparison during a diff pass.
	ItemStateNeedToCheck
	// ItemStateNotChanged marks a live item whose configuration is unchanged.
	ItemStateNotChanged
	// ItemStateNew marks a staged item that is not yet visible to readers.
	ItemStateNew
	// ItemStateChanged marks a live item that keeps its identity but needs
	// derived values refreshed.
	ItemStateChanged
	// ItemStateDelete marks a live item absent from the new configuration.
	ItemStateDelete
)

func (s ItemState) String() string {
	switch s {
	case ItemStateApplied:
		return "applied"
	case ItemStateNeedToCheck:
		return "need_to_check"
	case ItemStateNotChanged:
		return "not_changed"
	case ItemStateNew:
		return "new"
	case ItemStateChanged:
		return "changed"
	case ItemStateDelete:
		return "delete"
	}
	return "unknown"
}
