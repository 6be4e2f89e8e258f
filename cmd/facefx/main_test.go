package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facefx/internal/config"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, config.Default()))
	assert.Contains(t, buf.String(), "pipeline:")

	err := writeConfig(failingWriter{}, config.Default())
	assert.ErrorContains(t, err, "write config: broken pipe")
}
