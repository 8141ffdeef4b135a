package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/connexus-ai/resumatch/internal/service"
)

// DocAIAdapter calls a managed document-OCR/layout-parsing endpoint over
// REST and implements service.DocumentAIClient, used for PDF and image
// résumés/JDs that need OCR rather than native text extraction.
type DocAIAdapter struct {
	location string
	client   *http.Client
}

// NewDocAIAdapter creates a DocAIAdapter using application default
// credentials. location is the processor's region (e.g. "us", "eu").
func NewDocAIAdapter(ctx context.Context, location string) (*DocAIAdapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("llmclient.NewDocAIAdapter: %w", err)
	}
	return &DocAIAdapter{location: location, client: client}, nil
}

type docaiRawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

type docaiProcessRequest struct {
	RawDocument docaiRawDocument `json:"rawDocument"`
}

type docaiProcessResponse struct {
	Document struct {
		Text  string `json:"text"`
		Pages []struct {
			PageNumber int `json:"pageNumber"`
		} `json:"pages"`
		Entities []struct {
			Type        string  `json:"type"`
			MentionText string  `json:"mentionText"`
			Confidence  float64 `json:"confidence"`
		} `json:"entities"`
	} `json:"document"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ProcessDocument implements service.DocumentAIClient. processor is the
// full resource name: projects/{project}/locations/{location}/processors/{id}.
// content is sent inline as base64 — the core never writes the uploaded
// file to a bucket first.
func (a *DocAIAdapter) ProcessDocument(ctx context.Context, processor string, content []byte, mimeType string) (*service.DocumentAIResponse, error) {
	return withRetry(ctx, "ProcessDocument", func() (*service.DocumentAIResponse, error) {
		return a.process(ctx, processor, content, mimeType)
	})
}

func (a *DocAIAdapter) process(ctx context.Context, processor string, content []byte, mimeType string) (*service.DocumentAIResponse, error) {
	reqBody, err := json.Marshal(docaiProcessRequest{
		RawDocument: docaiRawDocument{
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: marshal: %w", err)
	}

	url := fmt.Sprintf("https://%s-documentai.googleapis.com/v1/%s:process", a.location, processor)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llmclient.ProcessDocument: status %d: %s", resp.StatusCode, body)
	}

	var parsed docaiProcessResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llmclient.ProcessDocument: API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	entities := make([]service.Entity, len(parsed.Document.Entities))
	for i, e := range parsed.Document.Entities {
		entities[i] = service.Entity{Type: e.Type, Content: e.MentionText, Confidence: e.Confidence}
	}

	return &service.DocumentAIResponse{
		Text:     parsed.Document.Text,
		Pages:    len(parsed.Document.Pages),
		Entities: entities,
	}, nil
}
