package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Entity represents a detected entity in a parsed document (e.g. date,
// person, amount). Carried through from the upstream parser for callers
// that want it; the core itself only consumes ParseResult.Text.
type Entity struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// DocumentAIClient abstracts the managed OCR/layout-parsing service used
// for PDFs and images. content is the raw file bytes — no GCS indirection,
// since the core never persists the uploaded file itself (spec: "persisted
// file storage" is an external collaborator).
type DocumentAIClient interface {
	ProcessDocument(ctx context.Context, processor string, content []byte, mimeType string) (*DocumentAIResponse, error)
}

// DocumentAIResponse is the parsed result from the OCR/layout service.
type DocumentAIResponse struct {
	Text     string
	Pages    int
	Entities []Entity
}

// ParserService implements TextExtractor: it routes an uploaded file's
// bytes to native in-process extraction (.docx via ZIP+XML, plain text
// formats by direct read) or to the managed OCR service (PDF, images),
// matching the PDF-parser-plus-text-cleaner boundary the spec treats as
// external to the core.
type ParserService struct {
	client    DocumentAIClient
	processor string // the OCR service's processor/model resource name
}

// NewParserService creates a ParserService. client may be nil if only
// native formats (.docx, plain text) are needed — e.g. in tests.
func NewParserService(client DocumentAIClient, processor string) *ParserService {
	return &ParserService{client: client, processor: processor}
}

// Extract implements service.TextExtractor.
func (s *ParserService) Extract(ctx context.Context, filename string, data []byte) (*ExtractResult, error) {
	start := time.Now()
	if len(data) == 0 {
		return nil, fmt.Errorf("service.Extract: empty file")
	}

	ext := strings.ToLower(filepath.Ext(filename))

	// .docx isn't OCR'd — it's already structured XML, so parse it natively.
	if ext == ".docx" {
		text, err := extractDocxText(data)
		if err != nil {
			return nil, fmt.Errorf("service.Extract: parse docx: %w", err)
		}
		return &ExtractResult{
			Text:             text,
			PageCount:        1,
			ParserUsed:       "docx-native",
			ExtractionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	// Plain-text formats are already readable; skip the OCR round trip.
	if isTextBasedFormat(ext) {
		if !isLikelyText(string(data)) {
			return nil, fmt.Errorf("service.Extract: %s has binary content, not plain text", ext)
		}
		return &ExtractResult{
			Text:             string(data),
			PageCount:        1,
			ParserUsed:       "text-passthrough",
			ExtractionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	// Everything else (PDF, images) goes through the managed OCR service.
	if s.client == nil {
		return nil, fmt.Errorf("service.Extract: %s requires an OCR client (not configured)", ext)
	}
	resp, err := s.client.ProcessDocument(ctx, s.processor, data, detectMimeType(ext))
	if err != nil {
		return nil, fmt.Errorf("service.Extract: ocr: %w", err)
	}
	if resp.Text == "" {
		return nil, fmt.Errorf("service.Extract: ocr returned empty text")
	}

	return &ExtractResult{
		Text:             resp.Text,
		PageCount:        resp.Pages,
		ParserUsed:       "ocr",
		ExtractionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// isTextBasedFormat returns true for file extensions that are plain text
// and don't need the OCR service.
func isTextBasedFormat(ext string) bool {
	switch ext {
	case ".txt", ".md", ".csv", ".json", ".log", ".xml", ".yaml", ".yml", ".html", ".htm":
		return true
	}
	return false
}

// isLikelyText checks whether content is readable text rather than binary
// data — a safety check before treating bytes as a plain-text file.
func isLikelyText(s string) bool {
	if len(s) == 0 {
		return false
	}
	sample := s
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.ValidString(sample) {
		return false
	}
	nonPrintable := 0
	total := 0
	for _, r := range sample {
		total++
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) < 0.05
}

// detectMimeType infers the MIME type from a file extension.
func detectMimeType(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
