package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Special token ids of the uncased BERT vocabulary, used when a vocab file omits them.
const (
	unkTokenID int64 = 100
	clsTokenID int64 = 101
	sepTokenID int64 = 102

	hashVocabSize   = 30000
	maxWordRunes    = 100
	defaultMaxInput = 256
)

// Tokenizer produces the three BERT inputs: input_ids, attention_mask and token_type_ids.
// Every slice has length maxTokens and the sequence is wrapped in [CLS] ... [SEP].
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer maps each term to a hashed id. It is the fallback for models
// that ship without a vocab.txt; quality is poor but lengths and masks are right.
type HashTokenizer struct{}

// Tokenize hashes Terms(text) into ids.
func (HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	terms := Terms(text)
	ids := make([]int64, 0, len(terms))
	for _, term := range terms {
		ids = append(ids, int64(HashString(term)%hashVocabSize))
	}
	return encodeSequence(ids, clsTokenID, sepTokenID, maxTokens)
}

// WordPieceTokenizer splits words into the longest subwords found in a BERT vocabulary,
// marking continuations with "##". A word with no split becomes [UNK].
type WordPieceTokenizer struct {
	vocab         map[string]int64
	unk, cls, sep int64
}

// NewWordPieceTokenizer builds a tokenizer over vocab (token to id).
func NewWordPieceTokenizer(vocab map[string]int64) *WordPieceTokenizer {
	id := func(token string, fallback int64) int64 {
		if v, ok := vocab[token]; ok {
			return v
		}
		return fallback
	}
	return &WordPieceTokenizer{
		vocab: vocab,
		unk:   id("[UNK]", unkTokenID),
		cls:   id("[CLS]", clsTokenID),
		sep:   id("[SEP]", sepTokenID),
	}
}

// LoadWordPiece reads a vocab.txt with one token per line; the line number is the id.
func LoadWordPiece(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), "\r")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return NewWordPieceTokenizer(vocab), nil
}

// Tokenize lower-cases text, splits it on whitespace and punctuation and encodes the word pieces.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicTokens(text) {
		ids = append(ids, t.pieces(word)...)
		if len(ids) >= maxTokens {
			break
		}
	}
	return encodeSequence(ids, t.cls, t.sep, maxTokens)
}

func (t *WordPieceTokenizer) pieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := false
		var id int64
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, found = t.vocab[piece]; found {
				break
			}
		}
		if !found {
			return []int64{t.unk}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// newTokenizer loads vocabPath, or vocab.txt next to the model when vocabPath is empty.
// Without a vocabulary the hash tokenizer is used.
func newTokenizer(vocabPath, modelPath string) (Tokenizer, error) {
	if vocabPath != "" {
		return LoadWordPiece(vocabPath)
	}
	if modelPath == "" {
		return HashTokenizer{}, nil
	}
	candidate := filepath.Join(filepath.Dir(modelPath), "vocab.txt")
	tok, err := LoadWordPiece(candidate)
	if errors.Is(err, os.ErrNotExist) {
		return HashTokenizer{}, nil
	}
	return tok, err
}

// basicTokens lower-cases text and splits it on whitespace, keeping each punctuation
// or symbol rune as its own token.
func basicTokens(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// encodeSequence wraps ids in cls/sep, truncates to maxTokens and pads with zeros.
func encodeSequence(ids []int64, cls, sep int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = defaultMaxInput
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	n := min(len(ids), maxTokens-2)
	inputIDs[0] = cls
	copy(inputIDs[1:], ids[:n])
	inputIDs[n+1] = sep
	for i := 0; i <= n+1; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Terms lower-cases text and splits it on anything that is not a letter or digit.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashString returns a deterministic non-negative FNV-1a style hash of s.
func HashString(s string) int {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}
