package llm

import (
	"context"
	"errors"
	"strings"
)

var ErrUnavailable = errors.New("llm unavailable")

// Stream yields the fragments of a single generation. It is finite and not
// restartable; a fresh Generate call is required per prompt.
type Stream interface {
	// Next returns the next text fragment. It returns done=true after the
	// final fragment has been consumed. A failed stream returns an error and
	// yields nothing further.
	Next() (fragment string, done bool, err error)
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (Stream, error)
}

// Collect drains a stream to completion and returns the accumulated text.
// Classification and extraction cannot act on partial output, so every caller
// goes through here.
func Collect(stream Stream) (string, error) {
	defer stream.Close()
	var builder strings.Builder
	for {
		fragment, done, err := stream.Next()
		if err != nil {
			return "", err
		}
		builder.WriteString(fragment)
		if done {
			return builder.String(), nil
		}
	}
}

// GenerateText issues a generation call and collects the full reply.
func GenerateText(ctx context.Context, generator Generator, prompt string) (string, error) {
	stream, err := generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return Collect(stream)
}
