package domain

import (
	"maps"
	"time"
)

// Document is a unit of text with its source metadata. Chunks produced by
// the splitter are Documents too.
type Document struct {
	Content  string         `json:"page_content"`
	Metadata map[string]any `json:"metadata"`
}

// NewDocument copies metadata so the returned Document does not alias the caller's map.
func NewDocument(content string, metadata map[string]any) Document {
	return Document{Content: content, Metadata: CloneMetadata(metadata)}
}

// CloneMetadata returns a shallow copy; values are scalars so this is a full copy.
func CloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return maps.Clone(metadata)
}

// Equal compares content and metadata. Numeric metadata values compare by
// value regardless of their Go type, so an int survives a JSON round trip.
func (d Document) Equal(other Document) bool {
	if d.Content != other.Content {
		return false
	}
	if len(d.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range d.Metadata {
		ov, ok := other.Metadata[k]
		if !ok || !scalarEqual(v, ov) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ScoredDocument is a search hit.
type ScoredDocument struct {
	Document Document `json:"document"`
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
}

// StoreInfo describes a persisted store.
type StoreInfo struct {
	SchemaVersion  int       `json:"schema_version"`
	Backend        string    `json:"backend"`
	Table          string    `json:"table"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Chunks         int       `json:"chunks"`
	BuiltAt        time.Time `json:"built_at"`
}
