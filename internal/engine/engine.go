// Package engine defines the streaming text-generation capability the
// ranking orchestrator drives, and a langchaingo-backed implementation.
//
// The engine is exclusively owned by one conversation at a time; callers
// serialise access (see lifecycle.Gate). Implementations are not reentrant.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrCanceled indicates the generation was interrupted by Cancel.
	ErrCanceled = errors.New("engine: generation canceled")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("engine: invalid configuration")
)

// FragmentFunc receives newly generated text. Fragments are appended, never
// diffed. The final call has done set and may carry empty text.
type FragmentFunc func(text string, done bool)

// Engine streams a response to a prompt.
//
// StreamResponse blocks until generation finishes. On success it has invoked
// onFragment with done=true exactly once; on failure it returns an error and
// never signals done. Cancel interrupts the generation in flight, if any.
//
// Implementations must return promptly once ctx is cancelled or Cancel is
// called. The orchestrator waits for StreamResponse to return before the
// engine is handed to the next conversation, so a batch timeout only bounds
// latency as tightly as the engine honours cancellation.
type Engine interface {
	StreamResponse(ctx context.Context, prompt string, onFragment FragmentFunc) error
	Cancel()
}
