package indicator

// Mean returns the simple moving average of window. Zero for an empty window.
func Mean(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// EWMA returns the exponential moving average of window evaluated at its
// newest point, using the recursive form without bias adjustment:
//
//	y[0] = x[0]
//	y[t] = alpha*x[t] + (1-alpha)*y[t-1],  alpha = 2/(span+1)
func EWMA(window []float64, span int) float64 {
	if len(window) == 0 {
		return 0
	}
	if span < 1 {
		span = 1
	}
	multiplier := 2.0 / float64(span+1)
	current := window[0]
	for _, v := range window[1:] {
		current = (v * multiplier) + (current * (1 - multiplier))
	}
	return current
}
