// Package model defines the replica data types shared by the terminal
// state, history storage, and trade request packages.
//
// Conventions:
//   - Money fields are float64 (lot sizes, prices) — the terminal's own
//     wire representation, not fixed-point.
//   - Timestamps are time.Time in the broker's local zone where the spec
//     requires weekday/clock comparisons (quote sessions), UTC otherwise.
package model
