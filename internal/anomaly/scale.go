package anomaly

import "sort"

// labelEncode maps each distinct value of a categorical column to its index
// in the sorted class list, so equal batches encode identically.
func labelEncode(values []string) []float64 {
	classes := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)

	index := make(map[string]float64, len(classes))
	for i, c := range classes {
		index[c] = float64(i)
	}

	encoded := make([]float64, len(values))
	for i, v := range values {
		encoded[i] = index[v]
	}
	return encoded
}

// robustScale centres a column on its median and divides by the
// interquartile range, so outliers do not dominate the spread the way they
// would with mean/stddev scaling. A constant column keeps unit scale.
func robustScale(values []float64) []float64 {
	center := quantile(values, .5)
	spread := quantile(values, .75) - quantile(values, .25)
	if spread == 0 {
		spread = 1
	}

	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = (v - center) / spread
	}
	return scaled
}

// quantile returns the q-th quantile with linear interpolation between
// order statistics.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
