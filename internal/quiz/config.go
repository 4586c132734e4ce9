package quiz

import (
	"fmt"
	"time"
)

// Config carries the engine constants. Nothing in the package reads globals.
type Config struct {
	PracticeTotalQuestions int
	PracticeDuration       time.Duration
	CorrectMark            float64
	NegativeMark           float64
	MixedEasy              int
	MixedMedium            int
	MixedHard              int
	CatalogCacheTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		PracticeTotalQuestions: 25,
		PracticeDuration:       10 * time.Minute,
		CorrectMark:            1,
		NegativeMark:           0.25,
		MixedEasy:              10,
		MixedMedium:            10,
		MixedHard:              5,
		CatalogCacheTTL:        time.Minute,
	}
}

func (c Config) Validate() error {
	if c.PracticeTotalQuestions <= 0 {
		return fmt.Errorf("%w: practice total questions must be positive", ErrInvalidConfig)
	}
	if c.PracticeDuration < time.Second {
		return fmt.Errorf("%w: practice duration must be at least one second", ErrInvalidConfig)
	}
	if c.CorrectMark <= 0 {
		return fmt.Errorf("%w: correct mark must be positive", ErrInvalidConfig)
	}
	if c.NegativeMark < 0 {
		return fmt.Errorf("%w: negative mark must not be negative", ErrInvalidConfig)
	}
	if c.MixedEasy < 0 || c.MixedMedium < 0 || c.MixedHard < 0 {
		return fmt.Errorf("%w: mixed split counts must not be negative", ErrInvalidConfig)
	}
	if c.MixedEasy+c.MixedMedium+c.MixedHard != c.PracticeTotalQuestions {
		return fmt.Errorf("%w: mixed split %d/%d/%d does not sum to %d", ErrInvalidConfig,
			c.MixedEasy, c.MixedMedium, c.MixedHard, c.PracticeTotalQuestions)
	}
	return nil
}

func (c Config) practiceScheme() MarkScheme {
	return MarkScheme{CorrectMark: c.CorrectMark, NegativeMark: c.NegativeMark}
}
