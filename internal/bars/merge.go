package bars

import "tickbars/internal/model"

// MergeTail combines two chronologically adjacent aggregates. previous must
// precede next: the result keeps previous's open and next's close and
// identity. Summed fields add, high/low take the extremes, and the top-N
// lists are merged under the topN cap.
func MergeTail(previous, next model.Bar, topN int) model.Bar {
	merged := next.Clone()

	merged.Open = previous.Open
	if previous.High > merged.High {
		merged.High = previous.High
	}
	if previous.Low < merged.Low {
		merged.Low = previous.Low
	}

	merged.Slippage += previous.Slippage
	merged.BuySlippage += previous.BuySlippage
	merged.Volume += previous.Volume
	merged.BuyVolume += previous.BuyVolume
	merged.Notional += previous.Notional
	merged.BuyNotional += previous.BuyNotional
	merged.Ticks += previous.Ticks
	merged.BuyTicks += previous.BuyTicks

	candidates := make([]model.TopTrade, 0, len(previous.TopN)+len(next.TopN))
	candidates = append(candidates, previous.TopN...)
	candidates = append(candidates, next.TopN...)
	merged.TopN = selectTopN(candidates, topN)

	return merged
}
