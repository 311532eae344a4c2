package config

const (
	defaultStateDir         = "~/.local/share/chordseq"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultPenalty          = 1.0
	defaultPenalties        = "0:5:0.5"
	defaultVocabulary       = 157
	defaultNumBatches       = 100
	defaultBatchSize        = 100
	defaultMargin           = 1.0
	defaultCopyAttempts     = 3

	stateDirEnv = "CHORDSEQ_STATE_DIR"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Decode: Decode{
			Penalty:    defaultPenalty,
			Penalties:  defaultPenalties,
			BatchMode:  true,
			Vocabulary: defaultVocabulary,
		},
		Selection: Selection{
			NumBatches:   defaultNumBatches,
			BatchSize:    defaultBatchSize,
			Margin:       defaultMargin,
			Repeatable:   true,
			CopyAttempts: defaultCopyAttempts,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
