// Package exitcodes defines the exit codes used by op-unittest.
package exitcodes

// Exit code constants used by op-unittest:
//
// * Success (0): every selected unit test passed
// * TestFailure (1): at least one unit test failed
// * RuntimeErr (2): the tests could not be run, for example because a source
// failed to compile or the report could not be written
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
