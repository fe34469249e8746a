package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel).For("cpu0")
	logger.Infof("reset complete")

	out := buf.String()
	require.True(t, strings.Contains(out, `"component":"cpu0"`), "expected component field, got %q", out)
	require.True(t, strings.Contains(out, "reset complete"))
}

func TestNopDiscardsOutput(t *testing.T) {
	logger := Nop()
	logger.Infof("should not appear anywhere")
}
