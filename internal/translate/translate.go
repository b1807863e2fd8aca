// Package translate defines the translation provider boundary.
//
// The actual machine-translation backend lives outside this service;
// this package pins down the interface the API calls through, so the
// provider can be swapped without touching quota enforcement.
package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Provider translates text between languages.
type Provider interface {
	// Translate translates the request text from Source to Target.
	Translate(ctx context.Context, req Request) (*Result, error)
}

// Request contains parameters for a translation.
type Request struct {
	Text   string       // Text to translate
	Source language.Tag // Source language
	Target language.Tag // Target language
	UserID uuid.UUID    // Requesting user, for provider-side tracking
}

// Result contains the translated text.
type Result struct {
	TranslatedText string
	// CharsProcessed is the number of source characters the provider
	// actually consumed. Usage is recorded from this value, not the
	// requested length, so aborted translations are never billed.
	CharsProcessed int
}

// Common provider errors.
var (
	// ErrUnsupportedPair indicates the provider cannot translate
	// between the requested languages.
	ErrUnsupportedPair = errors.New("translate: unsupported language pair")

	// ErrProviderUnavailable indicates a transient provider failure.
	ErrProviderUnavailable = errors.New("translate: provider unavailable")
)

// Validate checks a request before it is sent to a provider.
func (r Request) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("translate: empty text")
	}
	if r.Source == language.Und {
		return fmt.Errorf("translate: source language is undetermined")
	}
	if r.Target == language.Und {
		return fmt.Errorf("translate: target language is undetermined")
	}
	if r.Source == r.Target {
		return fmt.Errorf("translate: source and target languages are identical")
	}
	return nil
}
