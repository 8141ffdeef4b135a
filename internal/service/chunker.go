package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/section"
)

// Target chunk size and overlap, in estimated tokens.
const (
	targetTokensMin   = 600
	targetTokensMax   = 800
	overlapTokens     = 80
	trailingMergeMax  = 200
)

// ChunkerService splits a Document's cleaned text into section-tagged,
// heading-aware chunks sized between targetTokensMin and targetTokensMax,
// with a fixed-size overlap carried from the tail of each chunk into the
// next.
type ChunkerService struct{}

// NewChunkerService creates a ChunkerService.
func NewChunkerService() *ChunkerService {
	return &ChunkerService{}
}

// Chunk splits text into overlapping, section-classified chunks.
// Implements the Chunker interface used by the ingestion orchestrator.
func (s *ChunkerService) Chunk(ctx context.Context, text string, docID string, fileType model.FileType) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("service.Chunk: text is empty")
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("service.Chunk: no content after splitting")
	}

	segments := buildSegments(paragraphs, fileType)
	segments = mergeTrailingFragment(segments)
	overlapped := applyOverlap(segments)

	chunks := make([]model.Chunk, 0, len(overlapped))
	for _, seg := range overlapped {
		content := strings.TrimSpace(seg.content)
		if content == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{
			DocumentID:  docID,
			Content:     content,
			SectionType: seg.sectionType,
			CharCount:   len(content),
			TokenCount:  estimateTokens(content),
		})
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}

	return chunks, nil
}

type segment struct {
	content     string
	sectionType model.SectionType
}

// buildSegments merges small paragraphs and splits large ones to fit the
// chunk window, assigning each segment the section of its most recent
// heading (or the classifier's best guess when no heading has been seen).
func buildSegments(paragraphs []string, fileType model.FileType) []segment {
	var segments []segment
	var current strings.Builder
	currentSection := model.SectionOther
	sectionSeenFromHeading := false

	flush := func() {
		if current.Len() == 0 {
			return
		}
		sec := currentSection
		if !sectionSeenFromHeading {
			sec = section.Classify(current.String(), fileType)
		}
		segments = append(segments, segment{content: current.String(), sectionType: sec})
		current.Reset()
	}

	for _, para := range paragraphs {
		if heading := extractSectionTitle(para); heading != "" {
			if sec, ok := headingSection(heading, fileType); ok {
				flush()
				currentSection = sec
				sectionSeenFromHeading = true
				continue
			}
		}

		if !sectionSeenFromHeading {
			currentSection = section.Classify(para, fileType)
		}

		paraTokens := estimateTokens(para)
		currentTokens := estimateTokens(current.String())

		if currentTokens > 0 && currentTokens+paraTokens > targetTokensMax {
			flush()
		}

		if paraTokens > targetTokensMax {
			flush()
			sec := currentSection
			if !sectionSeenFromHeading {
				sec = section.Classify(para, fileType)
			}
			for _, sub := range splitLargeParagraph(para, targetTokensMax) {
				segments = append(segments, segment{content: sub, sectionType: sec})
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	flush()
	return segments
}

// mergeTrailingFragment folds a final segment under trailingMergeMax tokens
// into the previous segment rather than emitting an undersized trailing
// chunk.
func mergeTrailingFragment(segments []segment) []segment {
	if len(segments) < 2 {
		return segments
	}
	last := segments[len(segments)-1]
	if estimateTokens(last.content) >= trailingMergeMax {
		return segments
	}
	prev := segments[len(segments)-2]
	merged := segment{
		content:     prev.content + "\n\n" + last.content,
		sectionType: prev.sectionType,
	}
	out := make([]segment, len(segments)-1)
	copy(out, segments[:len(segments)-2])
	out[len(out)-1] = merged
	return out
}

// applyOverlap prepends a fixed overlapTokens-sized tail of each chunk to
// the next, so matching never loses context at a chunk boundary.
func applyOverlap(segments []segment) []segment {
	if len(segments) <= 1 {
		return segments
	}

	result := make([]segment, len(segments))
	result[0] = segments[0]

	for i := 1; i < len(segments); i++ {
		prevContent := segments[i-1].content
		tail := lastNWords(prevContent, tokensToWords(overlapTokens))
		if tail != "" {
			result[i] = segment{
				content:     tail + "\n\n" + segments[i].content,
				sectionType: segments[i].sectionType,
			}
		} else {
			result[i] = segments[i]
		}
	}

	return result
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var result []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func splitLargeParagraph(para string, chunkSize int) []string {
	sentences := splitSentences(para)
	var chunks []string
	var current strings.Builder

	for _, sent := range sentences {
		sentTokens := estimateTokens(sent)
		currentTokens := estimateTokens(current.String())

		if currentTokens > 0 && currentTokens+sentTokens > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 && len(para) > 0 {
		chunks = splitByWords(para, chunkSize)
	}

	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	current := strings.Builder{}

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

func splitByWords(text string, chunkSize int) []string {
	words := strings.Fields(text)
	wordsPerChunk := tokensToWords(chunkSize)
	if wordsPerChunk <= 0 {
		wordsPerChunk = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := i + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// extractSectionTitle detects a markdown-style or all-caps heading line.
func extractSectionTitle(para string) string {
	trimmed := strings.TrimSpace(para)
	if strings.HasPrefix(trimmed, "#") {
		title := strings.TrimLeft(trimmed, "# ")
		if title != "" {
			return title
		}
		return ""
	}
	firstLine := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine = trimmed[:idx]
	}
	if len(firstLine) > 0 && len(firstLine) < 40 && firstLine == strings.ToUpper(firstLine) && strings.ToLower(firstLine) != strings.ToLower(firstLine) {
		return firstLine
	}
	return ""
}

func headingSection(heading string, fileType model.FileType) (model.SectionType, bool) {
	sec := section.Classify(heading, fileType)
	if sec == model.SectionOther {
		return "", false
	}
	return sec, true
}

// estimateTokens approximates token count as words * 1.3, matching the
// heuristic used throughout the ingestion pipeline rather than invoking a
// real tokenizer per paragraph.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

func tokensToWords(tokens int) int {
	return int(float64(tokens) / 1.3)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func lastNWords(text string, n int) string {
	words := strings.Fields(text)
	if n >= len(words) {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}
