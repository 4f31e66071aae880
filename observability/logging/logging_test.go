package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "lendingd", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("loan opened", slog.String("loan", "abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "loan opened", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "lendingd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestMasking(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("token", "secret").Value.String())
	require.Equal(t, "abc", MaskField("Loan", "abc").Value.String())
	require.Equal(t, "Bearer ...wxyz", MaskBearer("Bearer abcdefghijklmnopqrstuvwxyz"))
	require.Equal(t, "Bearer "+RedactedValue, MaskBearer("Bearer short"))
	require.Equal(t, "", MaskBearer(""))
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
