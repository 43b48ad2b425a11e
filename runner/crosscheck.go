package runner

import "github.com/ethereum-optimism/infra/op-unittest/types"

// Reconcile combines the executions of the primary and secondary engines.
// When their outcomes are equivalent the primary execution stands. Otherwise
// the test is divergent, which always fails, and both outcomes are kept.
func Reconcile(primary, secondary Execution) Execution {
	if primary.Outcome.Equivalent(secondary.Outcome) {
		return primary
	}

	snapshot := primary.snapshot()
	if snapshot == nil {
		snapshot = secondary.snapshot()
	}
	return Execution{
		Outcome: types.Outcome{
			Status:   types.TestStatusDivergent,
			Expected: primary.Outcome.Expected,
			Bound:    primary.Outcome.Bound,
			Divergence: &types.Divergence{
				Primary:   primary.Outcome,
				Secondary: secondary.Outcome,
			},
		},
		Stats:    primary.Stats,
		Snapshot: snapshot,
	}
}
