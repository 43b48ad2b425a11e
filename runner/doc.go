// Package runner executes the unit tests of a test plan.
//
// The main components are:
//   - Filter: narrows the plan to tests whose qualified name contains a pattern
//   - ExecutionAdapter: runs one test on one engine against fresh storage and classifies the outcome
//   - Reconcile: compares primary and secondary engine outcomes and flags divergence
//   - TestRunner: schedules the filtered tests over a bounded worker pool
//   - TestResults: the merged per-test results, with statistics and summary reporting
//
// Every execution starts from a clone of the plan's genesis storage and is
// bounded by an instruction count, so the classification of each test does not
// depend on the number of workers or on scheduling order.
package runner
