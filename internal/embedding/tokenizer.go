package embedding

import "strings"

// Special token ids shared by SimpleTokenizer and the BERT vocabularies it stands in for.
const (
	padTokenID int64 = 0
	clsTokenID int64 = 101
	sepTokenID int64 = 102
)

// Tokenizer produces fixed-length token id tensors for BERT-style models
// (input_ids, attention_mask, token_type_ids), padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
	// TokenizePair encodes "[CLS] a [SEP] b [SEP]" for cross-encoders; b gets token type 1.
	TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return t.TokenizePair(text, "", maxTokens)
}

// TokenizePair encodes both segments; an empty b yields a single-segment encoding.
func (t *SimpleTokenizer) TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	ids := func(text string) []int64 {
		words := SplitWords(strings.ToLower(text))
		out := make([]int64, len(words))
		for i, w := range words {
			out[i] = int64(HashString(w)%30000) + 1000
		}
		return out
	}
	var second []int64
	if b != "" {
		second = ids(b)
	}
	return packSegments(ids(a), second, b != "", maxTokens, clsTokenID, sepTokenID, padTokenID)
}

// packSegments lays out [CLS] a [SEP] (b [SEP]) padded to maxTokens, truncating the
// longer segment first when the pair does not fit.
func packSegments(a, b []int64, pair bool, maxTokens int, cls, sep, pad int64) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	special := 2
	if pair {
		special = 3
	}
	budget := maxTokens - special
	if budget < 0 {
		budget = 0
	}
	for len(a)+len(b) > budget {
		if len(a) >= len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = pad
	}

	pos := 0
	put := func(id, typ int64) {
		if pos >= maxTokens {
			return
		}
		inputIDs[pos] = id
		attentionMask[pos] = 1
		tokenTypeIDs[pos] = typ
		pos++
	}
	put(cls, 0)
	for _, id := range a {
		put(id, 0)
	}
	put(sep, 0)
	if pair {
		for _, id := range b {
			put(id, 1)
		}
		put(sep, 1)
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
