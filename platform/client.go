// Package platform is a minimal REST client for the chat platform's
// moderation surface: renaming guild members and posting messages. Only the
// calls the guardian daemon needs are implemented.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

type Client struct {
	// Client is an HTTP client to use. If not set, defaults to RobustHTTPClient().
	Client    *http.Client
	Host      string
	Token     string
	UserAgent *string
	// Limiter, if set, throttles outbound mutations before they hit the wire.
	Limiter *rate.Limiter
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return RobustHTTPClient()
	}
	return c.Client
}

// Error is returned for any non-2xx platform response.
type Error struct {
	StatusCode int
	Wrapped    error
	Ratelimit  *RatelimitInfo
}

type RatelimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("platform error %d", e.StatusCode)
	}
	if e.StatusCode == http.StatusTooManyRequests && e.Ratelimit != nil {
		return fmt.Sprintf("platform error %d: %s (throttled until %s)", e.StatusCode, e.Wrapped, e.Ratelimit.Reset.Local())
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *Error) IsPermissionDenied() bool {
	return e.StatusCode == http.StatusForbidden
}

func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsMemberGone reports whether err means the rename target no longer exists
// (left the guild between event and action). Callers treat this as a benign
// no-op.
func IsMemberGone(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.IsNotFound()
}

func IsPermissionDenied(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.IsPermissionDenied()
}

func IsThrottled(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.IsThrottled()
}

type errorBody struct {
	ErrStr  string `json:"error"`
	Message string `json:"message"`
}

func errorFromResponse(resp *http.Response) error {
	out := &Error{StatusCode: resp.StatusCode}

	var eb errorBody
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &eb); err == nil && eb.ErrStr != "" {
			out.Wrapped = fmt.Errorf("%s: %s", eb.ErrStr, eb.Message)
		}
	}

	if resp.Header.Get("Ratelimit-Limit") != "" {
		out.Ratelimit = &RatelimitInfo{}
		if n, err := strconv.ParseInt(resp.Header.Get("Ratelimit-Reset"), 10, 64); err == nil {
			out.Ratelimit.Reset = time.Unix(n, 0)
		}
		if n, err := strconv.ParseInt(resp.Header.Get("Ratelimit-Limit"), 10, 64); err == nil {
			out.Ratelimit.Limit = int(n)
		}
		if n, err := strconv.ParseInt(resp.Header.Get("Ratelimit-Remaining"), 10, 64); err == nil {
			out.Ratelimit.Remaining = int(n)
		}
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path string, body any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, buf)
	if err != nil {
		return fmt.Errorf("constructing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.Token)
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "guardian/"+versioninfo.Short())
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	return nil
}

// SetMemberNick sets a member's guild nickname. An empty nick clears it back
// to the account username.
func (c *Client) SetMemberNick(ctx context.Context, guildID, memberID, nick string) error {
	path := fmt.Sprintf("/api/v1/guilds/%s/members/%s", guildID, memberID)
	return c.do(ctx, http.MethodPatch, path, map[string]string{"nick": nick})
}

// SendMessage posts a plain-text message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	path := fmt.Sprintf("/api/v1/channels/%s/messages", channelID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"content": content})
}
