package rag

import (
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

// Passage is a token-bounded slice of a longer text.
type Passage struct {
	Text      string
	TokenSize int
	Index     int
}

type PassageConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// NomicPassageConfig keeps passages well inside the default Ollama context
// used by nomic-embed-text.
func NomicPassageConfig() PassageConfig {
	return PassageConfig{
		MaxTokens:     1500,
		OverlapTokens: 64,
	}
}

// SplitPassages packs whole sentences into passages of at most MaxTokens.
// A sentence that alone exceeds the limit is cut on token boundaries.
func SplitPassages(text string, cfg PassageConfig) []Passage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if cfg.MaxTokens <= 0 {
		return []Passage{{Text: text, TokenSize: countTokens(text)}}
	}

	var (
		out  []Passage
		buf  strings.Builder
		size int
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, Passage{Text: strings.TrimSpace(buf.String()), TokenSize: size, Index: len(out)})
		buf.Reset()
		size = 0
	}

	sentences := splitSentences(text)
	for i, s := range sentences {
		n := countTokens(s)

		if n > cfg.MaxTokens {
			flush()
			for _, piece := range splitByTokens(s, cfg.MaxTokens) {
				out = append(out, Passage{Text: strings.TrimSpace(piece.Text), TokenSize: piece.TokenSize, Index: len(out)})
			}
			continue
		}

		if size+n > cfg.MaxTokens && buf.Len() > 0 {
			flush()
			if overlap := overlapBefore(sentences, i, cfg.OverlapTokens); overlap != "" {
				buf.WriteString(overlap)
				size = countTokens(overlap)
			}
		}

		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(s)
		size += n
	}
	flush()

	return out
}

func splitByTokens(text string, maxTokens int) []Passage {
	enc := tokenizer()
	if enc == nil {
		return splitByRunes(text, maxTokens*4)
	}

	tokens := enc.Encode(text, nil, nil)
	var out []Passage
	for i := 0; i < len(tokens); i += maxTokens {
		end := min(i+maxTokens, len(tokens))
		out = append(out, Passage{Text: enc.Decode(tokens[i:end]), TokenSize: end - i})
	}
	return out
}

func splitByRunes(text string, size int) []Passage {
	runes := []rune(text)
	var out []Passage
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		piece := string(runes[i:end])
		out = append(out, Passage{Text: piece, TokenSize: countTokens(piece)})
	}
	return out
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

func splitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var cur strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			cur.WriteRune(r)
			if !sentenceEnders[r] {
				continue
			}
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overlapBefore(sentences []string, idx, target int) string {
	if idx == 0 || target <= 0 {
		return ""
	}

	var picked []string
	tokens := 0
	for i := idx - 1; i >= 0 && tokens < target; i-- {
		picked = append([]string{sentences[i]}, picked...)
		tokens += countTokens(sentences[i])
	}
	return strings.Join(picked, " ")
}

// tokenizer returns nil when the encoding cannot be loaded.
func tokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tk = enc
		}
	})
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := tokenizer(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
