// Package obs provides a structured zerolog logger constructor and helpers
// that annotate child loggers with a pipeline stage or a (gene, cancer)
// pair, so every line built through it carries the same field set.
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger writing JSON to stderr, or a human-readable
// console writer when pretty is true (local development).
func New(component string, pretty bool) zerolog.Logger {
	var writer = os.Stderr
	logger := zerolog.New(writer).With().Timestamp().Str("component", component).Logger()
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer}).With().Timestamp().Str("component", component).Logger()
	}
	return logger
}

// Stage returns a child logger annotated with a pipeline stage name (one of
// Discovery, Dedup, Fetch, Parse, Chunk, Embed, or Index).
func Stage(l zerolog.Logger, stage string) zerolog.Logger {
	return l.With().Str("stage", stage).Logger()
}

// Pair returns a child logger annotated with a (gene, cancer) pair.
func Pair(l zerolog.Logger, gene, cancer string) zerolog.Logger {
	return l.With().Str("gene", gene).Str("cancer", cancer).Logger()
}
