package embedding

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

const defaultHashDimensions = 384

// HashClient 是离线、确定性的 embedding 实现：对每个词做 blake2b 特征哈希，
// 累加到固定维度后做 L2 归一化。相同输入永远得到相同向量。
type HashClient struct {
	dim int
}

// NewHashClient 创建指定维度的哈希 embedding 客户端。
func NewHashClient(dimensions int) *HashClient {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashClient{dim: dimensions}
}

// Dimensions 返回向量维度。
func (h *HashClient) Dimensions() int { return h.dim }

// Encode implements Client.
func (h *HashClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashClient) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		sum := blake2b.Sum256([]byte(tok))
		bucket := binary.LittleEndian.Uint64(sum[:8]) % uint64(h.dim)
		if sum[8]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
