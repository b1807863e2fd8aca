// Package mock provides a translation provider for testing and
// development.
package mock

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/mwilcek/fluentbridge/internal/translate"
)

// Provider is a mock translation provider. Without a configured
// response it echoes the source text back, which keeps local
// development working with no provider credentials.
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	TranslateResponse *translate.Result
	TranslateError    error

	// Call tracking for testing
	TranslateCalls int
}

// New creates a new mock translation provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Translate returns the configured response, or echoes the input.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	p.TranslateCalls++

	if p.TranslateError != nil {
		return nil, p.TranslateError
	}
	if p.TranslateResponse != nil {
		return p.TranslateResponse, nil
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	p.logger.Debug("mock translation",
		"source", req.Source,
		"target", req.Target,
		"chars", utf8.RuneCountInString(req.Text),
	)

	return &translate.Result{
		TranslatedText: req.Text,
		CharsProcessed: utf8.RuneCountInString(req.Text),
	}, nil
}
