package data

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder converts text to token IDs. *tiktoken.Tiktoken implements it.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TokenFeaturizer maps text to a fixed-width, L2-normalized bag of tokens.
// Token IDs are folded into width buckets.
type TokenFeaturizer struct {
	enc   Encoder
	width int
}

// NewTokenFeaturizer creates a featurizer over enc. width must be positive.
func NewTokenFeaturizer(enc Encoder, width int) (*TokenFeaturizer, error) {
	if width <= 0 {
		return nil, fmt.Errorf("feature width must be > 0, got %d", width)
	}
	return &TokenFeaturizer{enc: enc, width: width}, nil
}

// NewTikTokenFeaturizer creates a featurizer using a tiktoken encoding such as "cl100k_base".
//
// The encoding's BPE ranks are fetched and cached by tiktoken-go on first use.
func NewTikTokenFeaturizer(encoding string, width int) (*TokenFeaturizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return NewTokenFeaturizer(enc, width)
}

// Width returns the feature dimension.
func (f *TokenFeaturizer) Width() int {
	return f.width
}

// Featurize encodes text and returns its bucketed token counts, scaled to unit length.
// Empty text yields a zero vector.
func (f *TokenFeaturizer) Featurize(text string) []float32 {
	out := make([]float32, f.width)
	for _, tok := range f.enc.Encode(text, nil, nil) {
		b := tok % f.width
		if b < 0 {
			b += f.width
		}
		out[b]++
	}

	var sq float64
	for _, v := range out {
		sq += float64(v) * float64(v)
	}
	if sq == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sq))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// LoadTSV reads "target<TAB>text" lines into samples. Blank lines and lines
// starting with '#' are skipped.
func LoadTSV(r io.Reader, f *TokenFeaturizer) ([]Sample, error) {
	var out []Sample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, text, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: missing tab separator", lineNo)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(target), 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: target: %w", lineNo, err)
		}
		out = append(out, Sample{Features: f.Featurize(text), Target: float32(y)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return out, nil
}
