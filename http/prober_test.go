package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jl-grey-man/smbintel"
	smbhttp "github.com/jl-grey-man/smbintel/http"
	"github.com/jl-grey-man/smbintel/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_Probe(t *testing.T) {
	t.Parallel()

	t.Run("2xx is live and uses HEAD", func(t *testing.T) {
		t.Parallel()

		var method atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method.Store(r.Method)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL+"/inlagg")
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessLive, res.Liveness)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, http.MethodHead, method.Load())
	})

	t.Run("3xx to a live endpoint is redirect", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/gammal", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/ny", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/ny", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL+"/gammal")
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessRedirect, res.Liveness)
		assert.Equal(t, server.URL+"/ny", res.FinalURL)
	})

	t.Run("redirect to a missing page is dead", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/gammal", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/borta", http.StatusFound)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL+"/gammal")
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessDead, res.Liveness)
	})

	t.Run("redirect loop is dead", func(t *testing.T) {
		t.Parallel()

		var hops atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/snurra", func(w http.ResponseWriter, r *http.Request) {
			hops.Add(1)
			http.Redirect(w, r, "/snurra", http.StatusFound)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL+"/snurra")
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessDead, res.Liveness)
		assert.Equal(t, http.StatusFound, res.StatusCode)
		assert.Greater(t, hops.Load(), int32(1))
	})

	t.Run("3xx without location is dead", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusMovedPermanently)
		}))
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessDead, res.Liveness)
		assert.Equal(t, http.StatusMovedPermanently, res.StatusCode)
	})

	t.Run("4xx and 5xx are dead", func(t *testing.T) {
		t.Parallel()

		for _, code := range []int{http.StatusNotFound, http.StatusGone, http.StatusForbidden, http.StatusBadGateway} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL)
			server.Close()

			require.NoError(t, err)
			assert.Equal(t, smbintel.LivenessDead, res.Liveness, "status %d", code)
		}
	})

	t.Run("falls back to ranged GET when HEAD is not allowed", func(t *testing.T) {
		t.Parallel()

		var rangeHeader atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			rangeHeader.Store(r.Header.Get("Range"))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("x"))
		}))
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessLive, res.Liveness)
		assert.Equal(t, "bytes=0-0", rangeHeader.Load())
	})

	t.Run("slow server is timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		res, err := smbhttp.NewProber(20*time.Millisecond).Probe(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessTimeout, res.Liveness)
	})

	t.Run("unreachable host is timeout", func(t *testing.T) {
		t.Parallel()

		res, err := smbhttp.NewProber(100*time.Millisecond).Probe(context.Background(), "http://non-existent-host.invalid/")
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessTimeout, res.Liveness)
	})

	t.Run("too many requests is timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		res, err := smbhttp.NewProber(time.Second).Probe(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, smbintel.LivenessTimeout, res.Liveness)
	})

	t.Run("waits on the limiter per host", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		var waits atomic.Int32
		var host string
		p := smbhttp.NewProber(time.Second)
		p.Limiter = &mock.DomainLimiter{
			WaitFn: func(_ context.Context, domain string) error {
				waits.Add(1)
				host = domain
				return nil
			},
		}

		_, err := p.Probe(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, int32(1), waits.Load())
		assert.Equal(t, "127.0.0.1", host)
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		t.Parallel()

		_, err := smbhttp.NewProber(time.Second).Probe(context.Background(), "inte en url")
		assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
	})
}
