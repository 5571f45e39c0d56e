package telegram

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportRetriesDialErrors(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return httptest.NewRecorder().Result(), nil
		}),
		maxRetries: 3,
		backoff:    time.Millisecond,
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("text=hi"))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 3, calls)
}

func TestRetryTransportDoesNotReplayReadErrors(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return nil, &net.OpError{Op: "read", Err: errors.New("connection reset")}
		}),
		maxRetries: 3,
		backoff:    time.Millisecond,
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendPhoto", strings.NewReader("photo=1"))
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildHTTPClientCoversLongPoll(t *testing.T) {
	c := BuildHTTPClient(10 * time.Second)
	assert.Greater(t, c.Timeout, 10*time.Second)
}
