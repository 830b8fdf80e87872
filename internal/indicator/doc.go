// Package indicator provides moving averages over a window of daily totals.
package indicator
