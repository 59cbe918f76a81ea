package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/minio/highwayhash"
)

const defaultHashDimension = 256

var hashKey = []byte("helpdesk-feature-hashing-key-32b")

// HashEmbedder maps text to a vector by feature hashing of lower-cased
// words and word bigrams. It is deterministic and needs no network access.
type HashEmbedder struct {
	dimension int
	model     string
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = defaultHashDimension
	}
	return &HashEmbedder{dimension: dimension, model: fmt.Sprintf("hash-%d", dimension)}
}

func (e *HashEmbedder) Embed(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.embed(text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = v
	}
	return embeddings, nil
}

func (e *HashEmbedder) embed(text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, w := range words {
		if err := e.add(vec, w, 1); err != nil {
			return nil, err
		}
		if i > 0 {
			if err := e.add(vec, words[i-1]+" "+w, 0.5); err != nil {
				return nil, err
			}
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) error {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return err
	}
	if _, err = h.Write([]byte(feature)); err != nil {
		return err
	}
	sum := h.Sum(nil)
	bucket := binary.BigEndian.Uint64(sum) % uint64(e.dimension)
	if sum[7]&1 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
	return nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return e.model
}
