package internal

import (
	"chat-presence/domain"
	"chat-presence/moderation"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

type Config struct {
	Host             string        `env:"HOST,default=localhost" validate:"required"`
	Port             int           `env:"PORT,default=5000" validate:"gt=0,lte=65535"`
	HealthPort       int           `env:"HEALTH_PORT,default=0" validate:"gte=0,lte=65535"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	StoreDriver      string        `env:"STORE_DRIVER,default=badger" validate:"oneof=memory badger postgres"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,default=./data/chat" validate:"required_if=StoreDriver badger"`
	DatabaseURL      string        `env:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`
	ParticipantTTL   time.Duration `env:"PARTICIPANT_TTL,default=10s" validate:"gt=0"`
	ReapInterval     time.Duration `env:"REAP_INTERVAL,default=15s" validate:"gt=0"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MessageRetention *int          `env:"MESSAGE_RETENTION" validate:"omitnil,gt=0"`
	CensoredWords    string        `env:"CENSORED_WORDS"`
	CensoredDir      string        `env:"CENSORED_DIR"`
	CharReplacement  string        `env:"CHARACTER_REPLACEMENT,default=*"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return Parse(os.Environ())
}

// Parse decodes and validates a configuration from KEY=VALUE pairs.
func Parse(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	var config Config
	if err := env.Unmarshal(es, &config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := domain.Validate(config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Vocabulary merges CENSORED_WORDS with the dictionaries found in CENSORED_DIR.
// Languages lists the dictionary files read. An empty Words disables moderation.
func (c Config) Vocabulary() (*moderation.Dictionary, error) {
	words := moderation.ParseWords(c.CensoredWords)
	if c.CensoredDir == "" {
		return &moderation.Dictionary{Words: words}, nil
	}
	dictionary, err := moderation.LoadDictionary(os.DirFS(c.CensoredDir), ".")
	if err != nil {
		return nil, fmt.Errorf("loading censored words from %s: %w", c.CensoredDir, err)
	}
	dictionary.Words = append(words, dictionary.Words...)
	return dictionary, nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
