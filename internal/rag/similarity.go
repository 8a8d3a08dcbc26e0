package rag

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine similarity of a and b, or 0 when either is
// a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// RankRecords scores records against query by exact cosine similarity and
// returns the best topK. records must be in insertion order; ties keep it.
func RankRecords(records []ChunkRecord, query []float32, topK int) []ContextChunk {
	if topK <= 0 || len(records) == 0 {
		return []ContextChunk{}
	}

	scored := make([]ContextChunk, len(records))
	for i, r := range records {
		scored[i] = ContextChunk{Chunk: r.Chunk, Score: CosineSimilarity(query, r.Embedding)}
	}
	SortByScore(scored)

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// SortByScore orders chunks by non-increasing score, keeping the existing
// relative order of equal scores.
func SortByScore(chunks []ContextChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
}
