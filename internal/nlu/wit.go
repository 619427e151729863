package nlu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

const (
	defaultWitEndpoint   = "https://api.wit.ai"
	defaultWitAPIVersion = "20240304"
	// witMaxQueryRunes is the /message query limit enforced by Wit.ai.
	witMaxQueryRunes = 280
)

// WitInterpreter calls the Wit.ai /message endpoint.
type WitInterpreter struct {
	token      string
	endpoint   string
	apiVersion string
	client     *http.Client
}

func NewWitInterpreter(cfg config.WitConfig) (*WitInterpreter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("WIT_AI_TOKEN is required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultWitEndpoint
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultWitAPIVersion
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WitInterpreter{
		token:      cfg.Token,
		endpoint:   endpoint,
		apiVersion: version,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (w *WitInterpreter) Name() string {
	return "wit"
}

func (w *WitInterpreter) Interpret(ctx context.Context, text string) (dialogue.RecognitionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dialogue.RecognitionResult{}, ErrEmptyUtterance
	}
	if runes := []rune(text); len(runes) > witMaxQueryRunes {
		text = string(runes[:witMaxQueryRunes])
	}

	q := url.Values{}
	q.Set("v", w.apiVersion)
	q.Set("q", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"/message?"+q.Encode(), nil)
	if err != nil {
		return dialogue.RecognitionResult{}, fmt.Errorf("build wit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return dialogue.RecognitionResult{}, fmt.Errorf("wit request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dialogue.RecognitionResult{}, fmt.Errorf("read wit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := jsonparser.GetString(body, "error")
		return dialogue.RecognitionResult{}, fmt.Errorf("wit: unexpected status %d: %s", resp.StatusCode, msg)
	}

	return ParseWitResponse(body)
}

// ParseWitResponse extracts the top intent, the first value of every entity
// (keyed by entity name without its role) and every trait.
func ParseWitResponse(data []byte) (dialogue.RecognitionResult, error) {
	result := newResult()

	if msg, err := jsonparser.GetString(data, "error"); err == nil {
		return result, fmt.Errorf("wit: %s", msg)
	}

	name, err := jsonparser.GetString(data, "intents", "[0]", "name")
	switch {
	case err == nil:
		result.IntentName = name
		confidence, err := jsonparser.GetFloat(data, "intents", "[0]", "confidence")
		if err != nil {
			return result, fmt.Errorf("wit: intent confidence: %w", err)
		}
		result.Confidence = confidence
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
	default:
		return result, fmt.Errorf("wit: parse intents: %w", err)
	}

	if err := collectFirstValues(data, result.Entities, "entities"); err != nil {
		return result, err
	}
	if err := collectFirstValues(data, result.Traits, "traits"); err != nil {
		return result, err
	}
	return result, nil
}

// collectFirstValues fills dst from an object of arrays such as
// {"Body_Part:Body_Part": [{"value": "knee"}, ...]}.
func collectFirstValues(data []byte, dst map[string]string, key string) error {
	err := jsonparser.ObjectEach(data, func(k, v []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Array {
			return nil
		}
		name := string(k)
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		if _, seen := dst[name]; seen {
			return nil
		}
		if value, ok := firstValue(v); ok {
			dst[name] = value
		}
		return nil
	}, key)
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return fmt.Errorf("wit: parse %s: %w", key, err)
	}
	return nil
}

func firstValue(arr []byte) (string, bool) {
	raw, dataType, _, err := jsonparser.Get(arr, "[0]", "value")
	if err != nil {
		return "", false
	}
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return "", false
		}
		return s, true
	case jsonparser.Number, jsonparser.Boolean:
		return string(raw), true
	default:
		return "", false
	}
}
