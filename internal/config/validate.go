package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"chordseq/internal/faults"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateDecode,
		c.validateSelection,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return faults.Wrap(faults.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validateDecode() error {
	if math.IsNaN(c.Decode.Penalty) || math.IsInf(c.Decode.Penalty, 0) || c.Decode.Penalty < 0 {
		return errors.New("decode.penalty must be a finite non-negative number")
	}
	if c.Decode.Workers < 0 {
		return errors.New("decode.workers must be >= 0 (0 uses every CPU)")
	}
	if strings.TrimSpace(c.Decode.VocabularyFile) == "" {
		switch c.Decode.Vocabulary {
		case 25, 61, 157:
		default:
			return fmt.Errorf("decode.vocabulary must be 25, 61 or 157, got %d", c.Decode.Vocabulary)
		}
	}
	return nil
}

func (c *Config) validateSelection() error {
	if c.Selection.NumBatches <= 0 {
		return errors.New("selection.num_batches must be positive")
	}
	if c.Selection.BatchSize <= 0 {
		return errors.New("selection.batch_size must be positive")
	}
	if math.IsNaN(c.Selection.Margin) || math.IsInf(c.Selection.Margin, 0) || c.Selection.Margin < 0 {
		return errors.New("selection.margin must be a finite non-negative number")
	}
	if c.Selection.CopyAttempts < 1 {
		return errors.New("selection.copy_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
