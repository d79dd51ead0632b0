package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxCharsPerWord = 100

// WordPieceTokenizer implements BERT's basic + WordPiece tokenization from a vocab.txt file.
type WordPieceTokenizer struct {
	vocab     map[string]int64
	lowercase bool
	unkID     int64
	clsID     int64
	sepID     int64
	padID     int64
}

// LoadWordPieceTokenizer reads a vocab.txt (one token per line, id = line number).
func LoadWordPieceTokenizer(vocabPath string, lowercase bool) (*WordPieceTokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPieceTokenizer(tokens, lowercase)
}

// NewWordPieceTokenizer builds a tokenizer from an ordered token list.
func NewWordPieceTokenizer(tokens []string, lowercase bool) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, tok := range tokens {
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = int64(i)
		}
	}
	t := &WordPieceTokenizer{vocab: vocab, lowercase: lowercase}
	for _, sp := range []struct {
		name string
		dst  *int64
	}{
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
		{"[PAD]", &t.padID},
	} {
		id, ok := vocab[sp.name]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", sp.name)
		}
		*sp.dst = id
	}
	return t, nil
}

// Tokens returns the WordPiece tokens for text, without special tokens.
func (t *WordPieceTokenizer) Tokens(text string) []string {
	var out []string
	for _, word := range t.basicTokenize(text) {
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

// Tokenize encodes a single segment.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return packSegments(t.ids(text), nil, false, maxTokens, t.clsID, t.sepID, t.padID)
}

// TokenizePair encodes a (query, passage) pair for cross-encoders.
func (t *WordPieceTokenizer) TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return packSegments(t.ids(a), t.ids(b), true, maxTokens, t.clsID, t.sepID, t.padID)
}

func (t *WordPieceTokenizer) ids(text string) []int64 {
	toks := t.Tokens(text)
	out := make([]int64, len(toks))
	for i, tok := range toks {
		if id, ok := t.vocab[tok]; ok {
			out[i] = id
		} else {
			out[i] = t.unkID
		}
	}
	return out
}

// basicTokenize cleans text, optionally lowercases and strips accents, then splits on
// whitespace and punctuation.
func (t *WordPieceTokenizer) basicTokenize(text string) []string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if t.lowercase {
		cleaned = stripAccents(strings.ToLower(cleaned))
	}

	var words []string
	for _, field := range strings.Fields(cleaned) {
		start := 0
		rs := []rune(field)
		for i, r := range rs {
			if isPunctuation(r) {
				if i > start {
					words = append(words, string(rs[start:i]))
				}
				words = append(words, string(r))
				start = i + 1
			}
		}
		if start < len(rs) {
			words = append(words, string(rs[start:]))
		}
	}
	return words
}

// wordPiece splits word greedily into the longest vocabulary pieces ("##" marks continuations).
func (t *WordPieceTokenizer) wordPiece(word string) []string {
	rs := []rune(word)
	if len(rs) > maxCharsPerWord {
		return []string{"[UNK]"}
	}
	var pieces []string
	for start := 0; start < len(rs); {
		end := len(rs)
		found := ""
		for end > start {
			sub := string(rs[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

func stripAccents(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
