package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer

	ctx, _ := NewLoggerWithWriter(context.Background(), &buf, "MapCrop", "1.0.0", "debug", "json")
	logger := GetLoggerFromContext(ctx)
	logger.Debug().Str("id", "CAR-S-2041").Msg("extracted")

	var line map[string]any
	is.NoErr(json.Unmarshal(buf.Bytes(), &line))
	is.Equal(line["service"], "mapcrop")
	is.Equal(line["version"], "1.0.0")
	is.Equal(line["id"], "CAR-S-2041")
	is.Equal(line["level"], "debug")
}

func TestLoggerLevelFilter(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer

	_, logger := NewLoggerWithWriter(context.Background(), &buf, "mapcrop", "dev", "warn", "json")
	logger.Info().Msg("hidden")
	is.Equal(buf.Len(), 0)

	logger.Warn().Msg("shown")
	is.True(strings.Contains(buf.String(), "shown"))
}

func TestLoggerTextFormat(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer

	_, logger := NewLoggerWithWriter(context.Background(), &buf, "mapcrop", "dev", "", "text")
	logger.Info().Msg("hello")
	is.True(strings.Contains(buf.String(), "hello"))
	is.True(!strings.HasPrefix(buf.String(), "{"))
}

func TestGetLoggerFromEmptyContext(t *testing.T) {
	logger := GetLoggerFromContext(context.Background())
	logger.Debug().Msg("falls back to the global logger")
}
