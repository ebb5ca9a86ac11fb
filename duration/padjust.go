package duration

import (
	"math"
	"sort"
)

// AdjustBH adjusts p-values for multiple comparisons using the
// Benjamini-Hochberg step-up procedure, controlling the false discovery
// rate.  NaN values are left in place and not counted.
func AdjustBH(p []float64) []float64 {

	adj := make([]float64, len(p))

	var ii []int
	for i, v := range p {
		if math.IsNaN(v) {
			adj[i] = math.NaN()
			continue
		}
		ii = append(ii, i)
	}

	// Decreasing order of p
	sort.SliceStable(ii, func(a, b int) bool {
		return p[ii[a]] > p[ii[b]]
	})

	n := float64(len(ii))
	cm := math.Inf(1)
	for r, i := range ii {
		rank := n - float64(r)
		cm = math.Min(cm, n/rank*p[i])
		adj[i] = math.Min(1, cm)
	}

	return adj
}
