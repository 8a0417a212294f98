package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFileHook_OnlyWarningsAndAbove(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	logger.AddHook(NewErrorFileHook(&buf))

	logger.Info("phase started")
	logger.Warn("archive missing")
	logger.Error("cqlsh failed")

	out := buf.String()
	assert.NotContains(t, out, "phase started")
	assert.Contains(t, out, "archive missing")
	assert.Contains(t, out, "cqlsh failed")
}

func TestInit_WithDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	defer func() {
		logrus.SetOutput(os.Stderr)
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	}()

	sink, err := Init(Options{Dir: dir})
	require.NoError(t, err)

	_, err = sink.Stdout.Write([]byte("child output\n"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, OutLogName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "child output"))

	_, err = os.Stat(filepath.Join(dir, ErrLogName))
	assert.NoError(t, err)
}
