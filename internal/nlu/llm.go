package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

const llmSystemPrompt = `You classify what a patient says during a guided physical therapy session.
Reply with a single JSON object and nothing else:
{"intent": "<intent>", "confidence": <0..1>, "entities": {...}, "traits": {...}}

Intents: therapy_start, therapy_end, therapy_pause, therapy_resume, therapy_next,
therapy_previous, therapy_repeat, calibration_start, calibration_confirm, help_request,
feedback_positive, feedback_negative, emergency_stop, confirmation_yes, confirmation_no.
Use an empty intent when nothing fits.

Entities (only when mentioned): Body_Part (e.g. "knee"), Pain_Level (0-10 or "severe"),
Assistance_Type ("instructions", "modification" or "simplification").
Traits: Sentiment ("positive", "neutral" or "negative").`

// chatGenerator is the part of an eino chat model the interpreter needs.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLMInterpreter classifies utterances with a chat model.
type LLMInterpreter struct {
	chatModel chatGenerator
}

func NewLLMInterpreter(ctx context.Context, cfg config.LLMConfig) (*LLMInterpreter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("LLM_API_KEY is required")
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &LLMInterpreter{chatModel: chatModel}, nil
}

func (l *LLMInterpreter) Name() string {
	return "llm"
}

func (l *LLMInterpreter) Interpret(ctx context.Context, text string) (dialogue.RecognitionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dialogue.RecognitionResult{}, ErrEmptyUtterance
	}

	msg, err := l.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(llmSystemPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		return dialogue.RecognitionResult{}, fmt.Errorf("llm generate: %w", err)
	}
	if msg == nil {
		return dialogue.RecognitionResult{}, errors.New("llm returned no message")
	}

	return ParseLLMReply(msg.Content)
}

// ParseLLMReply reads the JSON object out of a model reply, tolerating code
// fences and surrounding prose.
func ParseLLMReply(reply string) (dialogue.RecognitionResult, error) {
	result := newResult()

	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return result, fmt.Errorf("llm reply has no JSON object: %q", reply)
	}
	data := []byte(reply[start : end+1])

	intent, err := jsonparser.GetString(data, "intent")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return result, fmt.Errorf("llm reply intent: %w", err)
	}
	result.IntentName = strings.TrimSpace(intent)

	if result.IntentName != "" {
		confidence, err := jsonparser.GetFloat(data, "confidence")
		if err != nil {
			return result, fmt.Errorf("llm reply confidence: %w", err)
		}
		result.Confidence = confidence
	}

	for key, dst := range map[string]map[string]string{"entities": result.Entities, "traits": result.Traits} {
		err := jsonparser.ObjectEach(data, func(k, v []byte, dataType jsonparser.ValueType, _ int) error {
			switch dataType {
			case jsonparser.String:
				s, err := jsonparser.ParseString(v)
				if err != nil {
					return err
				}
				if s != "" {
					dst[string(k)] = s
				}
			case jsonparser.Number:
				dst[string(k)] = string(v)
			}
			return nil
		}, key)
		if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return result, fmt.Errorf("llm reply %s: %w", key, err)
		}
	}

	return result, nil
}
