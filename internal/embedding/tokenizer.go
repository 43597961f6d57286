package embedding

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// CLIP special tokens.
const (
	startOfText = 49406
	endOfText   = 49407
	vocabSize   = 49408
)

// Tokenizer produces CLIP text-model inputs (input_ids, attention_mask), padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	return encode(SplitWords(strings.ToLower(text)), maxTokens, func(word string) int64 {
		return int64(HashString(word) % startOfText)
	})
}

// VocabTokenizer looks words up in a CLIP vocab.json (token -> id). Words
// missing from the vocabulary fall back to the hashed id.
type VocabTokenizer struct {
	vocab map[string]int64
}

// LoadVocabTokenizer reads a vocab.json file.
func LoadVocabTokenizer(path string) (*VocabTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	var vocab map[string]int64
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocab: %w", err)
	}
	return &VocabTokenizer{vocab: vocab}, nil
}

// Tokenize maps each lowercased word to its end-of-word vocabulary entry.
func (t *VocabTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	return encode(SplitWords(strings.ToLower(text)), maxTokens, func(word string) int64 {
		if id, ok := t.vocab[word+"</w>"]; ok {
			return id
		}
		if id, ok := t.vocab[word]; ok {
			return id
		}
		return int64(HashString(word) % startOfText)
	})
}

func encode(words []string, maxTokens int, lookup func(string) int64) (inputIDs, attentionMask []int64) {
	if maxTokens <= 2 {
		maxTokens = 77
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)

	inputIDs[0] = startOfText
	attentionMask[0] = 1
	pos := 1
	for _, word := range words {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = lookup(word)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = endOfText
	attentionMask[pos] = 1
	// CLIP pads with the end token; the mask marks the real span.
	for i := pos + 1; i < maxTokens; i++ {
		inputIDs[i] = endOfText
	}
	return inputIDs, attentionMask
}

// SplitWords splits text on whitespace and punctuation and returns non-empty words.
func SplitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})
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
