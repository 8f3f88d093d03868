// Package runner executes specifications.
//
// The main components are:
//   - Runner: runs one SpecificationToRun through Before, On, When, the
//     assertions and Finally, attributing any failure to its stage
//   - SpecRunner: runs every specification of a run plan, gate by gate
//   - ResultCollector: aggregates results into gates and suites
//   - ProgressIndicator: reports progress of long runs
//   - StabilityRunner: repeats whole runs to find unstable specifications
package runner
