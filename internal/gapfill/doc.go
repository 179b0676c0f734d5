// Package gapfill implements the gap-fill decision engine: the ordered
// fallback hierarchy that imputes a missing monthly consumption value
// for a site.
//
// Rules are tried in a fixed order and the first success wins:
//
//  1. Three-month average: the mean of the monthly sums of the three
//     calendar months immediately preceding the target month. Strict:
//     all three months must have data.
//  2. Same month, prior year: the monthly sum of the identical
//     calendar month one year earlier.
//  3. Intensity-factor fallback: a substitute value from an external
//     intensity table collaborator.
//
// When every rule fails the evaluation ends in a terminal gap whose
// explanation carries every rule's failure reason in order.
//
// The engine is pure with respect to its inputs: it performs no I/O,
// holds no mutable state between calls, and never consults the clock.
// Evaluations for different (site, month) pairs are independent and may
// run in parallel with no coordination.
package gapfill
