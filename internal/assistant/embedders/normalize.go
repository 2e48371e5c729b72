package embedders

import (
	"math"
	"strings"
)

// normalize scales a vector to unit L2 norm. Zero vectors are returned as-is.
func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = v / norm
	}
	return out
}

// cleanTexts flattens newlines and trims each input before embedding.
func cleanTexts(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(strings.ReplaceAll(t, "\n", " "))
	}
	return out
}
