package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, status int, body string, headers map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSetMemberNick(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := &Client{Client: srv.Client(), Host: srv.URL, Token: "secret"}
	assert.NoError(c.SetMemberNick(ctx, "g1", "m1", "Carl"))
	assert.Equal("/api/v1/guilds/g1/members/m1", gotPath)
	assert.Equal("Bot secret", gotAuth)
	assert.Equal("Carl", gotBody["nick"])
}

func TestErrorMapping(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := testServer(t, http.StatusForbidden, `{"error":"MissingPermission","message":"bot role too low"}`, nil)
	c := &Client{Client: srv.Client(), Host: srv.URL, Token: "t"}
	err := c.SetMemberNick(ctx, "g", "m", "x")
	assert.True(IsPermissionDenied(err))
	assert.False(IsMemberGone(err))
	assert.Contains(err.Error(), "MissingPermission")

	srv404 := testServer(t, http.StatusNotFound, `{"error":"UnknownMember","message":"no such member"}`, nil)
	c404 := &Client{Client: srv404.Client(), Host: srv404.URL, Token: "t"}
	err = c404.SetMemberNick(ctx, "g", "m", "x")
	assert.True(IsMemberGone(err))
	assert.False(IsThrottled(err))
}

func TestRatelimitInfo(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := testServer(t, http.StatusTooManyRequests, `{"error":"RateLimited","message":"slow down"}`, map[string]string{
		"Ratelimit-Limit":     "5",
		"Ratelimit-Remaining": "0",
		"Ratelimit-Reset":     "1700000000",
	})
	c := &Client{Client: srv.Client(), Host: srv.URL, Token: "t"}
	err := c.SendMessage(ctx, "chan1", "hi")
	assert.True(IsThrottled(err))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	require.NotNil(t, pe.Ratelimit)
	assert.Equal(5, pe.Ratelimit.Limit)
	assert.Equal(0, pe.Ratelimit.Remaining)
}
