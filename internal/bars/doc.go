// Package bars builds information-driven bars (volume, dollar, tick bars)
// from a day of ticks.
//
// ThresholdEngine closes a bar every time a per-tick attribute, summed since
// the previous bar, reaches a fixed target. AdaptiveEngine recomputes that
// target once per day from a moving average of recent daily totals. Both
// carry unfinished accumulation from one day to the next in a cache record
// that is persisted by the caller between runs.
package bars
