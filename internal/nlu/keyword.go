package nlu

import (
	"context"
	"regexp"
	"strings"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

type keywordRule struct {
	intent  string
	phrases []string
}

// commandRules are checked in order; the first rule with a matching phrase wins.
var commandRules = []keywordRule{
	{dialogue.IntentEmergencyStop, []string{"emergency", "stop everything", "stop now", "call for help", "i fell"}},
	{dialogue.IntentCalibrationStart, []string{"calibrate", "calibration", "recalibrate"}},
	{dialogue.IntentTherapyEnd, []string{"end session", "end the session", "finish session", "finish the session", "i'm done", "i am done"}},
	{dialogue.IntentTherapyStart, []string{"start session", "start the session", "start", "begin", "let's start", "start exercising", "start the exercises"}},
	{dialogue.IntentTherapyPause, []string{"pause", "take a break", "hold on"}},
	{dialogue.IntentTherapyResume, []string{"resume", "continue", "i'm back", "i am back"}},
	{dialogue.IntentTherapyPrevious, []string{"previous", "go back", "last exercise"}},
	{dialogue.IntentTherapyNext, []string{"next", "skip"}},
	{dialogue.IntentTherapyRepeat, []string{"repeat", "again", "say that again"}},
	{dialogue.IntentFeedbackNegative, []string{"hurts", "hurt", "pain", "painful", "sore", "too hard", "difficult", "uncomfortable"}},
	{dialogue.IntentHelpRequest, []string{"help", "how do i", "instructions", "easier", "simpler", "modify", "different way"}},
}

var positivePhrases = []string{"feels good", "feel good", "feels great", "great", "good", "easy", "better"}

var answerRules = []keywordRule{
	{dialogue.IntentConfirmationYes, []string{"yes", "yeah", "yep", "sure", "correct", "that's right", "okay", "ok"}},
	{dialogue.IntentConfirmationNo, []string{"no", "nope", "not really", "wrong", "cancel"}},
}

var negations = []string{"not", "no", "don't", "doesn't", "isn't", "never"}

var bodyParts = []string{
	"shoulder", "arm", "elbow", "wrist", "hand", "neck", "back", "hip", "knee", "ankle", "leg", "foot", "head",
}

var (
	painOutOfTen = regexp.MustCompile(`\b(\d{1,2})\s*(?:out of|/)\s*10\b`)
	painLevel    = regexp.MustCompile(`\bpain(?: level)?(?: is)?(?: a| an)?\s+(\d{1,2})\b`)
	painWords    = regexp.MustCompile(`\b(severe|extreme|unbearable|mild|slight)\b`)
	nonWord      = regexp.MustCompile(`[^a-z0-9'/ ]+`)
)

var assistanceTypes = []struct {
	value   string
	phrases []string
}{
	{"instructions", []string{"how do i", "instructions", "explain", "show me"}},
	{"modification", []string{"modify", "different way", "alternative", "change it"}},
	{"simplification", []string{"easier", "simpler", "simplify", "too hard"}},
}

// KeywordInterpreter is an offline phrase matcher. Every match is reported with
// the same confidence.
type KeywordInterpreter struct {
	confidence         float64
	calibrationPhrases []string
}

func NewKeywordInterpreter(confidence float64, calibrationPhrases []string) *KeywordInterpreter {
	if confidence <= 0 || confidence > 1 {
		confidence = 0.9
	}
	phrases := make([]string, 0, len(calibrationPhrases))
	for _, p := range calibrationPhrases {
		if n := normalize(p); n != "" {
			phrases = append(phrases, n)
		}
	}
	return &KeywordInterpreter{confidence: confidence, calibrationPhrases: phrases}
}

func (k *KeywordInterpreter) Name() string {
	return "keyword"
}

func (k *KeywordInterpreter) Interpret(_ context.Context, text string) (dialogue.RecognitionResult, error) {
	norm := normalize(text)
	if norm == "" {
		return dialogue.RecognitionResult{}, ErrEmptyUtterance
	}

	result := newResult()
	result.IntentName = k.matchIntent(norm)
	if result.IntentName != "" {
		result.Confidence = k.confidence
	}

	switch result.IntentName {
	case dialogue.IntentFeedbackNegative, dialogue.IntentFeedbackPositive, dialogue.IntentHelpRequest, "":
		for _, part := range bodyParts {
			if containsPhrase(norm, part) {
				result.Entities[dialogue.SlotBodyPart] = part
				break
			}
		}
	}
	if m := painOutOfTen.FindStringSubmatch(norm); m != nil {
		result.Entities[dialogue.SlotPainLevel] = m[1]
	} else if m := painLevel.FindStringSubmatch(norm); m != nil {
		result.Entities[dialogue.SlotPainLevel] = m[1]
	} else if m := painWords.FindStringSubmatch(norm); m != nil {
		result.Entities[dialogue.SlotPainLevel] = m[1]
	}
	for _, a := range assistanceTypes {
		if containsAny(norm, a.phrases) {
			result.Entities[dialogue.SlotAssistanceType] = a.value
			break
		}
	}
	switch result.IntentName {
	case dialogue.IntentFeedbackPositive:
		result.Traits[dialogue.SlotSentiment] = "positive"
	case dialogue.IntentFeedbackNegative:
		result.Traits[dialogue.SlotSentiment] = "negative"
	}

	return result, nil
}

func (k *KeywordInterpreter) matchIntent(norm string) string {
	for _, phrase := range k.calibrationPhrases {
		if norm == phrase {
			return dialogue.IntentCalibrationConfirm
		}
	}
	for _, rule := range commandRules {
		if containsAny(norm, rule.phrases) {
			return rule.intent
		}
	}
	// "no, that's not good" answers the question; sentiment words after it do not count.
	for _, rule := range answerRules {
		for _, p := range rule.phrases {
			if strings.HasPrefix(norm+" ", p+" ") {
				return rule.intent
			}
		}
	}
	for _, p := range positivePhrases {
		if !containsPhrase(norm, p) {
			continue
		}
		if negatedBefore(norm, p) {
			return dialogue.IntentFeedbackNegative
		}
		return dialogue.IntentFeedbackPositive
	}
	for _, rule := range answerRules {
		if containsAny(norm, rule.phrases) {
			return rule.intent
		}
	}
	return ""
}

// negatedBefore reports whether a negation word precedes the first occurrence of phrase.
func negatedBefore(norm, phrase string) bool {
	padded := " " + norm + " "
	idx := strings.Index(padded, " "+phrase+" ")
	if idx < 0 {
		return false
	}
	for _, w := range strings.Fields(padded[:idx]) {
		for _, n := range negations {
			if w == n {
				return true
			}
		}
	}
	return false
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "’", "'")
	text = nonWord.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func containsAny(norm string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(norm, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches whole words only, so "no" does not match "know".
func containsPhrase(norm, phrase string) bool {
	padded := " " + norm + " "
	return strings.Contains(padded, " "+phrase+" ")
}
