// Package nlu turns user utterances into dialogue recognition results.
//
// Three backends are available: Wit.ai (cloud intent service), an LLM
// classifier driven through eino, and an offline keyword matcher used by the
// console and in tests.
package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

// ErrEmptyUtterance is returned when there is nothing to interpret.
var ErrEmptyUtterance = errors.New("empty utterance")

// Interpreter maps an utterance to an intent with slots.
type Interpreter interface {
	// Name returns the backend identifier ("wit", "llm", "keyword").
	Name() string

	// Interpret classifies text. An utterance that matches nothing is not an
	// error: it yields a result with an empty intent.
	Interpret(ctx context.Context, text string) (dialogue.RecognitionResult, error)
}

// New builds the interpreter selected by cfg.Backend. Calibration phrases are
// needed by the keyword backend to recognise calibration responses.
func New(ctx context.Context, cfg config.NLUConfig, calibrationPhrases []string) (Interpreter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "wit":
		wit, err := NewWitInterpreter(cfg.Wit)
		if err != nil {
			return nil, err
		}
		return wit, nil
	case "llm":
		llm, err := NewLLMInterpreter(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case "keyword", "":
		return NewKeywordInterpreter(cfg.Keyword.Confidence, calibrationPhrases), nil
	default:
		return nil, fmt.Errorf("unknown nlu backend %q", cfg.Backend)
	}
}

func newResult() dialogue.RecognitionResult {
	return dialogue.RecognitionResult{
		Entities: map[string]string{},
		Traits:   map[string]string{},
	}
}
