// Package describe produces short natural-language descriptions of workflows.
//
// A Describer asks an optional Generator (a language model) for a description and
// falls back to Heuristic whenever the generator is disabled, slow or failing, so
// callers always receive a non-empty description.
package describe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
)

const (
	// DefaultTimeout bounds a single generator call.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxWords caps generated descriptions.
	DefaultMaxWords = 30
)

var (
	// ErrUnavailable is returned by generators that are not configured.
	ErrUnavailable = errors.New("description generator unavailable")

	// ErrGeneration is returned when the generator answered with something unusable.
	ErrGeneration = errors.New("description generation failed")
)

// Generator turns a workflow summary into a description.
type Generator interface {
	Generate(ctx context.Context, summary Summary) (string, error)
}

// Option configures a Describer.
type Option func(*Describer)

// WithGenerator sets the language-model backend. Without one, every description
// is heuristic.
func WithGenerator(generator Generator) Option {
	return func(d *Describer) {
		d.generator = generator
	}
}

// WithCache stores generated descriptions by summary hash.
func WithCache(cache Cache) Option {
	return func(d *Describer) {
		d.cache = cache
	}
}

// WithTimeout bounds each generator call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Describer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxWords caps the number of words kept from a generated description.
func WithMaxWords(words int) Option {
	return func(d *Describer) {
		if words > 0 {
			d.maxWords = words
		}
	}
}

// Describer is safe for concurrent use.
type Describer struct {
	generator Generator
	cache     Cache
	timeout   time.Duration
	maxWords  int
	logger    *slog.Logger
}

// NewDescriber creates a Describer.
func NewDescriber(logger *slog.Logger, opts ...Option) *Describer {
	d := &Describer{
		timeout:  DefaultTimeout,
		maxWords: DefaultMaxWords,
		logger:   logger.With("module", "describer"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Describe returns a description of the workflow. It never fails: generator
// errors and timeouts are logged and answered with Heuristic.
func (d *Describer) Describe(ctx context.Context, workflow *models.Workflow) string {
	logger := d.logger.With("workflow_id", workflow.ID)

	if d.generator == nil {
		logger.DebugContext(ctx, "No description generator configured, using heuristic")

		return Heuristic(workflow)
	}

	summary := Summarize(logger, workflow)

	payload, err := summary.JSON()
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode workflow summary, using heuristic", "error", err)

		return Heuristic(workflow)
	}

	key := cacheKey(payload)

	if d.cache != nil {
		if cached, ok := d.cache.Get(ctx, key); ok {
			return cached
		}
	}

	description, err := d.generate(ctx, summary)
	if err != nil {
		logger.WarnContext(ctx, "Description generation failed, using heuristic", "error", err)

		return Heuristic(workflow)
	}

	if d.cache != nil {
		d.cache.Set(ctx, key, description)
	}

	return description
}

type generated struct {
	text string
	err  error
}

// generate runs the generator under the timeout. A generator that ignores its
// context is abandoned when the deadline passes.
func (d *Describer) generate(ctx context.Context, summary Summary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan generated, 1)

	go func() {
		text, err := d.generator.Generate(ctx, summary)
		done <- generated{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
	case result := <-done:
		if result.err != nil {
			return "", result.err
		}

		text := TruncateWords(strings.TrimSpace(result.text), d.maxWords)
		if text == "" {
			return "", fmt.Errorf("%w: empty description", ErrGeneration)
		}

		return text, nil
	}
}

// TruncateWords keeps at most n whitespace-separated words.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}

	return strings.Join(words[:n], " ")
}

func cacheKey(payload []byte) string {
	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:])
}
