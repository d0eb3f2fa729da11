package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

// ErrParseFailed reports a document the parsing service could not turn into
// pages. Callers skip the document and move on; it is never fatal.
var ErrParseFailed = errors.New("document parse failed")

// Parser turns one raw file into ordered pages of text.
type Parser interface {
	Parse(ctx context.Context, name string, file []byte) (data.SourceDocument, error)
}

func NewParser(ctx context.Context, parserConfig config.RawParser) (Parser, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch parserConfig.Type {
	case "docparse":
		docparseConfig, ok := parserConfig.Value.(config.DocparseConfig)
		if !ok {
			logger.Error("could not cast docparse config",
				slog.String("component", "parser"),
				slog.String("type", parserConfig.Type))
			return nil, fmt.Errorf("parser config is not a docparse config")
		}
		logger.Info("creating a new docparse client",
			slog.String("component", "parser"),
			slog.String("endpoint", docparseConfig.Endpoint))
		return NewDocparseConnector(ctx, docparseConfig), nil
	default:
		logger.Error("could not find parser type",
			slog.String("component", "parser"),
			slog.String("type", parserConfig.Type))
		return nil, fmt.Errorf("parser type %s is not supported", parserConfig.Type)
	}
}
