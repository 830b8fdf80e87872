package model

// Filter narrows the ticks returned by a TickSource. Nil bounds are not applied.
type Filter struct {
	Symbol      string
	MinSlippage *float64
	MaxSlippage *float64
	MinVolume   *float64
	MaxVolume   *float64
	MinNotional *float64
	MaxNotional *float64
	MinExponent *int
	MaxExponent *int
	TickRule    *int

	// MultipleSymbols orders rows by symbol before time.
	MultipleSymbols bool
}

// Match reports whether t passes every configured predicate.
// A MaxExponent of 0 requires the exponent to be exactly 0.
func (f *Filter) Match(t *Tick) bool {
	if f.Symbol != "" && t.Symbol != f.Symbol {
		return false
	}
	if f.MinSlippage != nil && t.Slippage < *f.MinSlippage {
		return false
	}
	if f.MaxSlippage != nil && t.Slippage > *f.MaxSlippage {
		return false
	}
	if f.MinVolume != nil && t.Volume < *f.MinVolume {
		return false
	}
	if f.MaxVolume != nil && t.Volume > *f.MaxVolume {
		return false
	}
	if f.MinNotional != nil && t.Notional < *f.MinNotional {
		return false
	}
	if f.MaxNotional != nil && t.Notional > *f.MaxNotional {
		return false
	}
	if f.MinExponent != nil && t.Exponent < *f.MinExponent {
		return false
	}
	if f.MaxExponent != nil {
		if *f.MaxExponent == 0 {
			if t.Exponent != 0 {
				return false
			}
		} else if t.Exponent > *f.MaxExponent {
			return false
		}
	}
	if f.TickRule != nil && t.TickRule != *f.TickRule {
		return false
	}
	return true
}
