package internal

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)

	config, err := Parse(nil)

	req.NoError(err)
	req.Equal("localhost", config.Host)
	req.Equal(5000, config.Port)
	req.Equal(0, config.HealthPort)
	req.Equal(DriverBadger, config.StoreDriver)
	req.Equal("./data/chat", config.BadgerFilepath)
	req.Equal(10*time.Second, config.ParticipantTTL)
	req.Equal(15*time.Second, config.ReapInterval)
	req.Equal(200*time.Millisecond, config.RestartInterval)
	req.Equal(5*time.Second, config.ShutdownTimeout)
	req.Nil(config.MessageRetention)
	dictionary, err := config.Vocabulary()
	req.NoError(err)
	req.Empty(dictionary.Words)
	req.Empty(dictionary.Languages)
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)

	config, err := Parse([]string{
		"STORE_DRIVER=memory",
		"PORT=6000",
		"PARTICIPANT_TTL=3s",
		"MESSAGE_RETENTION=50",
		"CENSORED_WORDS=foo, bar ,,baz",
		"CHARACTER_REPLACEMENT=#",
	})

	req.NoError(err)
	req.Equal(DriverMemory, config.StoreDriver)
	req.Equal(6000, config.Port)
	req.Equal(3*time.Second, config.ParticipantTTL)
	req.NotNil(config.MessageRetention)
	req.Equal(50, *config.MessageRetention)
	dictionary, err := config.Vocabulary()
	req.NoError(err)
	req.Equal([]string{"foo", "bar", "baz"}, dictionary.Words)
	r, err := CharacterRune(config.CharReplacement)
	req.NoError(err)
	req.Equal('#', r)
}

func TestConfig_Vocabulary_Reads_Dictionaries(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, "pt.txt"), []byte("idiota\nburro\n"), 0o600))

	config, err := Parse([]string{"CENSORED_WORDS=badger", "CENSORED_DIR=" + dir})
	req.NoError(err)

	dictionary, err := config.Vocabulary()
	req.NoError(err)
	req.Equal([]string{"badger", "burro", "idiota"}, dictionary.Words)
	req.Equal([]string{"pt"}, dictionary.Languages)
}

func TestConfig_Vocabulary_Empty_Directory(t *testing.T) {
	config, err := Parse([]string{"CENSORED_DIR=" + t.TempDir()})
	require.NoError(t, err)

	_, err = config.Vocabulary()
	require.ErrorIs(t, err, chaterrors.ErrEmptyWords)
}

func TestParse_Rejects_Invalid(t *testing.T) {
	cases := map[string][]string{
		"unknown driver":         {"STORE_DRIVER=redis"},
		"postgres without url":   {"STORE_DRIVER=postgres"},
		"zero ttl":               {"PARTICIPANT_TTL=0s"},
		"zero retention":         {"MESSAGE_RETENTION=0"},
		"multi-char replacement": {"CHARACTER_REPLACEMENT=**"},
		"port out of range":      {"PORT=70000"},
		"negative reap interval": {"REAP_INTERVAL=-1s"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(environ)
			require.Error(t, err)
		})
	}
}

func TestParse_Validation_Errors_Are_Typed(t *testing.T) {
	_, err := Parse([]string{"STORE_DRIVER=redis"})
	require.ErrorIs(t, err, chaterrors.ErrValidation)
}

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()
	log := slog.Default()
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, driver := range []string{DriverMemory, DriverBadger} {
		t.Run(driver, func(t *testing.T) {
			req := require.New(t)
			config, err := Parse([]string{"STORE_DRIVER=" + driver, "BADGER_FILEPATH=" + t.TempDir()})
			req.NoError(err)

			store, err := OpenStore(ctx, config, log, func() time.Time { return t0 })
			req.NoError(err)
			defer func() { req.NoError(store.Close()) }()

			_, err = store.Participants.Join(ctx, "Ana", t0)
			req.NoError(err)
			_, err = store.Messages.Append(ctx, domain.JoinedNotice("Ana"))
			req.NoError(err)

			messages, err := store.Messages.QueryAll(ctx)
			req.NoError(err)
			req.Len(messages, 1)
			req.Equal(t0, messages[0].At)
		})
	}
}
