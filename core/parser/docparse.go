package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

type docparseConnector struct {
	endpoint   string
	httpClient *http.Client
}

type docparseResponse struct {
	Pages []data.Page `json:"pages"`
	Error string      `json:"error,omitempty"`
}

func NewDocparseConnector(ctx context.Context, docparseConfig config.DocparseConfig) Parser {
	timeout := time.Duration(docparseConfig.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &docparseConnector{
		endpoint:   docparseConfig.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Parse uploads the file to the parsing service and maps the JSON page list
// into a SourceDocument identified by the object key. Every failure mode is
// wrapped in ErrParseFailed so callers can skip the document.
func (c *docparseConnector) Parse(ctx context.Context, name string, file []byte) (data.SourceDocument, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fileWriter, err := writer.CreateFormFile("file", name)
	if err != nil {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}
	if _, err := fileWriter.Write(file); err != nil {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}
	if err := writer.Close(); err != nil {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/parse", &body)
	if err != nil {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.httpClient.Do(request)
	if err != nil {
		logger.Error("parse request failed",
			slog.String("component", "parser"),
			slog.String("document", name),
			slog.String("error", err.Error()))
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(response.Body)
		logger.Error("parse service rejected document",
			slog.String("component", "parser"),
			slog.String("document", name),
			slog.Int("status", response.StatusCode),
			slog.String("body", string(responseBody)))
		return data.SourceDocument{}, fmt.Errorf("%w: %s: status %d", ErrParseFailed, name, response.StatusCode)
	}

	var parsed docparseResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %v", ErrParseFailed, name, err)
	}
	if parsed.Error != "" {
		return data.SourceDocument{}, fmt.Errorf("%w: %s: %s", ErrParseFailed, name, parsed.Error)
	}

	// page order is the contract downstream; do not trust the service's ordering
	sort.Slice(parsed.Pages, func(i, j int) bool {
		return parsed.Pages[i].Index < parsed.Pages[j].Index
	})

	return data.SourceDocument{ID: name, Pages: parsed.Pages}, nil
}
