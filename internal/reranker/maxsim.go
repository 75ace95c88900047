package reranker

import "math"

// maxSim is the late-interaction relevance of a chunk to a query: for each
// query token take the best cosine similarity against any chunk token, then
// average over the query tokens. Result is in [-1,1], in practice [0,1].
func maxSim(queryVecs, chunkVecs [][]float32) float64 {
	if len(queryVecs) == 0 || len(chunkVecs) == 0 {
		return 0
	}

	chunkNorms := make([]float64, len(chunkVecs))
	for i, v := range chunkVecs {
		chunkNorms[i] = norm(v)
	}

	var total float64
	for _, q := range queryVecs {
		qn := norm(q)
		if qn == 0 {
			continue
		}
		best := math.Inf(-1)
		for i, c := range chunkVecs {
			if chunkNorms[i] == 0 {
				continue
			}
			sim := dot(q, c) / (qn * chunkNorms[i])
			if sim > best {
				best = sim
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return total / float64(len(queryVecs))
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
