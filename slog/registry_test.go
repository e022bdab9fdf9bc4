package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/mock"
	smbslog "github.com/jl-grey-man/smbintel/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingRegistry_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("logs hits", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Registry{
			LookupFn: func(context.Context, string) (*smbintel.Enrichment, error) {
				return &smbintel.Enrichment{Found: true, OrgNumber: "556677-8899", Name: "Byggbolaget AB"}, nil
			},
		}

		e, err := smbslog.NewLoggingRegistry(inner, slog.New(slog.NewTextHandler(&buf, nil))).Lookup(context.Background(), "Byggbolaget")

		require.NoError(t, err)
		assert.Equal(t, "556677-8899", e.OrgNumber)
		assert.Contains(t, buf.String(), "found=true")
		assert.Contains(t, buf.String(), "org_number=556677-8899")
	})

	t.Run("logs misses without an error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Registry{
			LookupFn: func(context.Context, string) (*smbintel.Enrichment, error) {
				return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no match")
			},
		}

		_, err := smbslog.NewLoggingRegistry(inner, slog.New(slog.NewTextHandler(&buf, nil))).Lookup(context.Background(), "Okänt AB")

		assert.Equal(t, smbintel.ENOTFOUND, smbintel.ErrorCode(err))
		assert.Contains(t, buf.String(), "found=false")
		assert.NotContains(t, buf.String(), "err=")
	})

	t.Run("logs failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Registry{
			LookupFn: func(context.Context, string) (*smbintel.Enrichment, error) {
				return nil, errors.New("connection reset")
			},
		}

		_, err := smbslog.NewLoggingRegistry(inner, slog.New(slog.NewTextHandler(&buf, nil))).Lookup(context.Background(), "Byggbolaget")

		require.Error(t, err)
		assert.Contains(t, buf.String(), "err=\"connection reset\"")
	})
}
