package dialogue

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidConfig 配置不满足约束，New 唯一可能返回的错误
var ErrInvalidConfig = errors.New("invalid dialogue config")

// Config 状态机配置，构造后在实例生命周期内不变
type Config struct {
	HighConfidenceThreshold   float64
	MediumConfidenceThreshold float64
	MinConfidenceThreshold    float64

	TotalExercises          int
	TotalCalibrationPhrases int

	// IntentFriendlyNames 确认提问用语："Did you mean to <name>?"
	IntentFriendlyNames map[string]string

	// Exercises / CalibrationPhrases 可选展示文本，非空时长度须与总数一致
	Exercises          []string
	CalibrationPhrases []string
}

func DefaultConfig() Config {
	return Config{
		HighConfidenceThreshold:   0.85,
		MediumConfidenceThreshold: 0.65,
		MinConfidenceThreshold:    0.50,
		TotalExercises:            5,
		TotalCalibrationPhrases:   3,
		IntentFriendlyNames: map[string]string{
			IntentTherapyStart:       "start the session",
			IntentTherapyEnd:         "end the session",
			IntentTherapyPause:       "pause the session",
			IntentTherapyResume:      "resume the session",
			IntentTherapyNext:        "move to the next exercise",
			IntentTherapyPrevious:    "go back to the previous exercise",
			IntentTherapyRepeat:      "repeat the current exercise",
			IntentCalibrationStart:   "start calibration",
			IntentCalibrationConfirm: "confirm the calibration phrase",
			IntentHelpRequest:        "ask for help",
			IntentFeedbackPositive:   "give positive feedback",
			IntentFeedbackNegative:   "report a problem with the exercise",
			IntentEmergencyStop:      "stop everything right now",
		},
		Exercises: []string{
			"Slowly raise your right arm to shoulder height, hold for three seconds, then lower it.",
			"Slowly raise your left arm to shoulder height, hold for three seconds, then lower it.",
			"Roll both shoulders backwards five times.",
			"Turn your head gently to the left, then to the right.",
			"Reach forward with both hands as far as is comfortable, then return.",
		},
		CalibrationPhrases: []string{
			"The quick brown fox jumps over the lazy dog",
			"My voice is clear and steady",
			"I am ready to move today",
		},
	}
}

func (c Config) Validate() error {
	thresholds := []struct {
		name string
		v    float64
	}{
		{"high_confidence_threshold", c.HighConfidenceThreshold},
		{"medium_confidence_threshold", c.MediumConfidenceThreshold},
		{"min_confidence_threshold", c.MinConfidenceThreshold},
	}
	for _, t := range thresholds {
		if math.IsNaN(t.v) || t.v < 0 || t.v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, t.name, t.v)
		}
	}
	if c.MinConfidenceThreshold > c.MediumConfidenceThreshold || c.MediumConfidenceThreshold > c.HighConfidenceThreshold {
		return fmt.Errorf("%w: thresholds must satisfy min <= medium <= high, got %v/%v/%v",
			ErrInvalidConfig, c.MinConfidenceThreshold, c.MediumConfidenceThreshold, c.HighConfidenceThreshold)
	}
	if c.TotalExercises <= 0 {
		return fmt.Errorf("%w: total_exercises must be positive, got %d", ErrInvalidConfig, c.TotalExercises)
	}
	if c.TotalCalibrationPhrases <= 0 {
		return fmt.Errorf("%w: total_calibration_phrases must be positive, got %d", ErrInvalidConfig, c.TotalCalibrationPhrases)
	}
	if len(c.Exercises) > 0 && len(c.Exercises) != c.TotalExercises {
		return fmt.Errorf("%w: %d exercise texts for %d exercises", ErrInvalidConfig, len(c.Exercises), c.TotalExercises)
	}
	if len(c.CalibrationPhrases) > 0 && len(c.CalibrationPhrases) != c.TotalCalibrationPhrases {
		return fmt.Errorf("%w: %d calibration phrases for %d calibration steps",
			ErrInvalidConfig, len(c.CalibrationPhrases), c.TotalCalibrationPhrases)
	}
	return nil
}

// Classify 按阈值划分置信度区间，边界使用 >= 语义
func (c Config) Classify(confidence float64) Band {
	confidence = clampConfidence(confidence)
	switch {
	case confidence >= c.HighConfidenceThreshold:
		return BandDirect
	case confidence >= c.MediumConfidenceThreshold:
		return BandConfirmation
	case confidence >= c.MinConfidenceThreshold:
		return BandGuidance
	default:
		return BandEscalation
	}
}

func (c Config) friendlyName(intent string) string {
	if name, ok := c.IntentFriendlyNames[intent]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return strings.ReplaceAll(intent, "_", " ")
}

func (c Config) exerciseText(index int) string {
	if index >= 0 && index < len(c.Exercises) {
		return c.Exercises[index]
	}
	return fmt.Sprintf("Exercise %d of %d.", index+1, c.TotalExercises)
}

func (c Config) calibrationPhrase(index int) string {
	if index >= 0 && index < len(c.CalibrationPhrases) {
		return c.CalibrationPhrases[index]
	}
	return fmt.Sprintf("Calibration phrase %d", index+1)
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
