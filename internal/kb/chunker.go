// Package kb builds and queries the per-job knowledge base: page content is
// chunked, embedded, and stored for retrieval-augmented analysis.
package kb

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxChunkSize is the chunk size budget in characters. Chunks stay
// small enough that several fit into an analysis prompt together.
const DefaultMaxChunkSize = 1500

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// SplitIntoChunks splits content into chunks of at most maxSize characters.
// Paragraph boundaries are preserved where possible; oversized paragraphs
// fall back to sentence boundaries, and a single oversized sentence is cut
// hard at the size limit.
func SplitIntoChunks(content string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, paragraph := range splitParagraphs(content) {
		if len(paragraph) > maxSize {
			flush()
			chunks = append(chunks, splitSentences(paragraph, maxSize)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(paragraph)+2 > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}

func splitParagraphs(content string) []string {
	raw := paragraphSplit.Split(content, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitSentences packs the paragraph's sentences into chunks of at most
// maxSize characters.
func splitSentences(paragraph string, maxSize int) []string {
	var sentences []string
	var sb strings.Builder

	runes := []rune(paragraph)
	for i, r := range runes {
		sb.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(sb.String()); s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, sentence := range sentences {
		if len(sentence) > maxSize {
			flush()
			chunks = append(chunks, hardSplit(sentence, maxSize)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

func hardSplit(text string, maxSize int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += maxSize {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
