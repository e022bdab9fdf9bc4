package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jl-grey-man/smbintel/mock"
	smbslog "github.com/jl-grey-man/smbintel/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingFetcher(t *testing.T) {
	t.Parallel()

	t.Run("logs url, size and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) {
				return "<p>Bokföring</p>", nil
			},
		}

		html, err := smbslog.NewLoggingFetcher(inner, slog.New(slog.NewTextHandler(&buf, nil))).
			Fetch(context.Background(), "https://forum.example.se/t/1")

		require.NoError(t, err)
		assert.Equal(t, "<p>Bokföring</p>", html)
		output := buf.String()
		assert.Contains(t, output, "msg=fetch")
		assert.Contains(t, output, "url=https://forum.example.se/t/1")
		assert.Contains(t, output, "bytes=17")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs the error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) {
				return "", errors.New("connection refused")
			},
		}

		_, err := smbslog.NewLoggingFetcher(inner, slog.New(slog.NewTextHandler(&buf, nil))).
			Fetch(context.Background(), "https://forum.example.se/t/1")

		require.Error(t, err)
		assert.Contains(t, buf.String(), "err=\"connection refused\"")
		assert.Contains(t, buf.String(), "bytes=0")
	})

	t.Run("close delegates", func(t *testing.T) {
		t.Parallel()

		var closed bool
		inner := &mock.Fetcher{CloseFn: func() error { closed = true; return nil }}

		require.NoError(t, smbslog.NewLoggingFetcher(inner, slog.Default()).Close())
		assert.True(t, closed)
	})
}
