// Package dashscope talks to the DashScope OpenAI-compatible API: file
// uploads for extraction, and streamed chat-completion analysis.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"paperlens/internal/config"
)

const doneSentinel = "[DONE]"

// UploadError reports a rejected file upload with the provider's response.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %d - %s", e.Status, e.Body)
}

// AnalysisError reports a chat-completion request rejected before any
// streaming began.
type AnalysisError struct {
	Status int
	Body   string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %d - %s", e.Status, e.Body)
}

// Sink receives decoded output from an analysis stream.
type Sink interface {
	// OnDelta is called for each incremental text fragment, in provider
	// emission order.
	OnDelta(text string) error
	// OnStreamError is called at most once, when the stream breaks after it
	// was successfully opened.
	OnStreamError(msg string)
}

// Client is constructed once at startup and injected where needed.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	// No overall timeout: an analysis stream may legitimately run minutes,
	// and uploads carry documents up to the fetch ceiling.
	httpc *http.Client
}

func NewClient(prov config.ProviderConfig) (*Client, error) {
	if prov.APIKey == "" {
		return nil, errors.New("dashscope api key is required (set DASHSCOPE_API_KEY)")
	}
	return &Client{
		baseURL: strings.TrimRight(prov.BaseURL, "/"),
		apiKey:  prov.APIKey,
		model:   prov.Model,
		httpc:   &http.Client{},
	}, nil
}

// Configured reports whether a client could be built from the given provider
// config, for health reporting.
func Configured(prov config.ProviderConfig) bool {
	return prov.APIKey != ""
}

// UploadFile sends the document to the provider's file endpoint with the
// extraction purpose tag and returns the provider's opaque file handle.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.WriteField("purpose", "file-extract")
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UploadError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Bytes    int64  `json:"bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("upload response missing file id")
	}
	log.Printf("uploaded %s to dashscope as %s (%d bytes)", parsed.Filename, parsed.ID, parsed.Bytes)
	return parsed.ID, nil
}

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	Stream        bool          `json:"stream"`
	StreamOptions struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamAnalysis opens a streaming chat completion over the uploaded file and
// forwards each decoded text delta to the sink as soon as it arrives. A
// transport failure after the stream opened is reported to the sink once and
// is not returned as an error; a rejected request is.
func (c *Client) StreamAnalysis(ctx context.Context, fileID string, sink Sink) error {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "system", Content: "fileid://" + fileID},
			{Role: "user", Content: analysisPrompt},
		},
		Stream: true,
	}
	reqBody.StreamOptions.IncludeUsage = true

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &AnalysisError{Status: resp.StatusCode, Body: string(body)}
	}

	var buffer eventBuffer
	chunk := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			for _, block := range buffer.Feed(chunk[:n]) {
				if err := c.handleBlock(block, sink); err != nil {
					return err
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sink.OnStreamError(err.Error())
			return nil
		}
	}
}

// handleBlock decodes one SSE block. Malformed frames are skipped so a single
// bad frame cannot abort the stream.
func (c *Client) handleBlock(block string, sink Sink) error {
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == doneSentinel {
			continue
		}
		var parsed chatChunk
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			continue
		}
		if len(parsed.Choices) == 0 {
			continue
		}
		if content := parsed.Choices[0].Delta.Content; content != "" {
			if err := sink.OnDelta(content); err != nil {
				return err
			}
		}
		if reason := parsed.Choices[0].FinishReason; reason != "" {
			log.Printf("analysis stream finished: %s", reason)
		}
	}
	return nil
}
