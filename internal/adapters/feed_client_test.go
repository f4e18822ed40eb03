package adapters

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedClientDownload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch r.URL.Path {
		case "/flat/contoso.lineup/2.1.0-preview1/contoso.lineup.2.1.0-preview1.nupkg":
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("archive"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewFeedClient(server.URL+"/flat/", "", "", time.Second, 3)
	data, err := client.Download(context.Background(), "Contoso.Lineup", "2.1.0-Preview1")
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFeedClientDownloadErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		timeout   time.Duration
		wantCode  errbuilder.ErrCode
		wantMsg   string
		wantCalls int32
	}{
		{
			name:      "not found is not retried",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantCode:  errbuilder.CodeNotFound,
			wantMsg:   "not found on feed",
			wantCalls: 1,
		},
		{
			name:      "server errors exhaust retries",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantCode:  errbuilder.CodeInternal,
			wantMsg:   "failed",
			wantCalls: 3,
		},
		{
			name:      "client errors are not retried",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantCode:  errbuilder.CodeInternal,
			wantMsg:   "failed",
			wantCalls: 1,
		},
		{
			name: "slow server times out",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
			timeout:   50 * time.Millisecond,
			wantCode:  errbuilder.CodeDeadlineExceeded,
			wantMsg:   "timed out after 50ms",
			wantCalls: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			client := NewFeedClient(server.URL, "", "", timeout, 3)
			_, err := client.Download(context.Background(), "A", "1.0.0")
			require.Error(t, err)
			if diff := cmp.Diff(tt.wantCode, errbuilder.CodeOf(err)); diff != "" {
				t.Fatalf("error code mismatch (-want +got):\n%s", diff)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestFeedClientCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	client := NewFeedClient(server.URL, "", "", 5*time.Second, 3)
	_, err := client.Download(ctx, "A", "1.0.0")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeCanceled, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "canceled")
}

func TestFeedClientPush(t *testing.T) {
	var gotKey, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-NuGet-ApiKey")
		file, header, err := r.FormFile("package")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		gotFile = header.Filename + ":" + string(content)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	path := writeTempFile(t, t.TempDir(), "A.1.0.0.nupkg", "zip-bytes")
	client := NewFeedClient("", server.URL+"/api/v2/package", "secret", time.Second, 1)
	require.NoError(t, client.Push(context.Background(), path))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "A.1.0.0.nupkg:zip-bytes", gotFile)
}

func TestFeedClientPushExistingVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	path := writeTempFile(t, t.TempDir(), "A.1.0.0.nupkg", "zip-bytes")
	client := NewFeedClient("", server.URL, "", time.Second, 2)
	require.NoError(t, client.Push(context.Background(), path))
}
