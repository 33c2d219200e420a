package memory

import (
	"encoding/binary"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

type scoredRecord struct {
	Record
	score float64
}

func topRecords(scored []scoredRecord, n int) []Record {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > n {
		scored = scored[:n]
	}
	out := make([]Record, len(scored))
	for i, s := range scored {
		out[i] = s.Record
	}
	return out
}

var (
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

	stopWords = map[string]bool{
		"que": true, "qué": true, "los": true, "las": true, "del": true,
		"por": true, "para": true, "con": true, "una": true, "uno": true,
		"como": true, "cómo": true, "pero": true, "sus": true, "este": true,
		"esta": true, "eso": true, "esto": true, "hay": true, "muy": true,
		"the": true, "and": true, "for": true, "with": true, "this": true,
		"that": true, "what": true, "from": true,
	}
)

// extractKeywords extracts meaningful keywords from a query.
func extractKeywords(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)

	var keywords []string
	seen := make(map[string]bool)
	for _, word := range words {
		if len([]rune(word)) < 3 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// calculateRelevance scores text by keyword overlap with a small recency
// bonus. Text with no matching keyword scores 0.
func calculateRelevance(text string, keywords []string, age time.Duration) float64 {
	text = strings.ToLower(text)

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	keywordScore := float64(matched) / float64(len(keywords))

	// Decay over 30 days
	recencyScore := math.Exp(-age.Hours() / (24.0 * 30.0))

	return math.Min(keywordScore*0.8+recencyScore*0.2, 1.0)
}

// encodeEmbedding converts a vector to a little-endian BLOB (4 bytes per float32).
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts a BLOB back to a vector.
func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
