package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/dashboard-auth/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	env, level, file string
}

func (c testConfig) GetEnv() string       { return c.env }
func (c testConfig) GetAppName() string   { return "test" }
func (c testConfig) GetLogLevel() string  { return c.level }
func (c testConfig) GetLogFile() string   { return c.file }
func (c testConfig) GetLogMaxSizeMB() int { return 1 }

func TestNew_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashauth.log")
	logger := logging.New(testConfig{env: "PROD", level: "debug", file: path})

	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	logger.Info().Str("user", "admin").Msg("signed in")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"user":"admin"`)
	require.Contains(t, string(data), `"app":"test"`)
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	logger := logging.New(testConfig{env: "DEV", level: "loud"})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
