// Package sampler defines the random-choice interface used wherever the
// service picks among equivalent candidates, and implements it three ways:
//
//   - Random: unseeded, safe for concurrent use, used in production
//   - Seeded: reproducible sequence for a given seed
//   - RoundRobin: deterministic rotation that never reorders, used in tests
//
// Callers never depend on map iteration order; they hand an ordered slice to
// Pick or Shuffled.
package sampler
