// Package slack provides the thin Slack Web API client the dispatcher uses
// to apply a presence profile: auth verification, notification snoozing,
// presence, and status profile updates.
//
// The client is fire-and-forget from the caller's point of view: it never
// reads back the resulting profile, and the only observable outcome of each
// call is success or failure. Timeouts and retries are this package's
// responsibility, not the caller's.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the Slack Web API root. Overridable for tests.
const DefaultBaseURL = "https://slack.com/api"

// RequiredScopes are the OAuth scopes every run needs before attempting any
// mutation: profile write, presence write, and DND write.
var RequiredScopes = []string{"users.profile:write", "users:write", "dnd:write"}

// Presence is the binary availability signal Slack exposes.
type Presence string

const (
	PresenceAway Presence = "away"
	PresenceAuto Presence = "auto"
)

// ErrMissingToken is returned when the client is constructed without a token.
var ErrMissingToken = errors.New("slack token is empty")

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client talks to the Slack Web API on behalf of a single user token.
type Client struct {
	// BaseURL is the API root; tests point it at a local server.
	BaseURL string

	token string
	http  *retryablehttp.Client
}

// NewClient creates a Slack client for the given user OAuth token.
func NewClient(token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil // suppress retryablehttp's default logging

	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		http:    rc,
	}
}

// ///////////////////////////////////////////////
// Auth
// ///////////////////////////////////////////////

// AuthInfo is the identity and grant set reported by auth.test.
type AuthInfo struct {
	// UserID is the authenticated user's Slack ID.
	UserID string `json:"user_id"`
	// User is the authenticated user's display name.
	User string `json:"user"`
	// Team is the workspace name.
	Team string `json:"team"`
	// Scopes are the OAuth scopes granted to the token, from the
	// X-OAuth-Scopes response header.
	Scopes []string `json:"-"`
}

// MissingScopes returns the entries of required that the token lacks.
func (a *AuthInfo) MissingScopes(required []string) []string {
	granted := make(map[string]bool, len(a.Scopes))
	for _, s := range a.Scopes {
		granted[s] = true
	}
	var missing []string
	for _, s := range required {
		if !granted[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// VerifyAuth calls auth.test and returns the token's identity and granted
// scopes. It performs no mutation and is always the first call of a run.
func (c *Client) VerifyAuth(ctx context.Context) (*AuthInfo, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	body, header, err := c.postForm(ctx, "auth.test", url.Values{})
	if err != nil {
		return nil, err
	}

	var info AuthInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse auth.test response: %w", err)
	}
	for _, s := range strings.Split(header.Get("X-OAuth-Scopes"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			info.Scopes = append(info.Scopes, s)
		}
	}
	return &info, nil
}

// ///////////////////////////////////////////////
// Mutations
// ///////////////////////////////////////////////

// SnoozeNotifications turns on DND snooze for the given number of minutes.
func (c *Client) SnoozeNotifications(ctx context.Context, minutes int) error {
	_, _, err := c.postForm(ctx, "dnd.setSnooze", url.Values{
		"num_minutes": {strconv.Itoa(minutes)},
	})
	return err
}

// SetPresence sets the user's presence to away or auto.
func (c *Client) SetPresence(ctx context.Context, p Presence) error {
	_, _, err := c.postForm(ctx, "users.setPresence", url.Values{
		"presence": {string(p)},
	})
	return err
}

// ProfileUpdate is the payload for users.profile.set. A zero Expiration
// means the status never expires.
type ProfileUpdate struct {
	Text       string
	Emoji      string
	Expiration int64 // epoch seconds
}

// SetProfile sets the user's status text, emoji, and expiration.
func (c *Client) SetProfile(ctx context.Context, p ProfileUpdate) error {
	payload := map[string]any{
		"profile": map[string]any{
			"status_text":       p.Text,
			"status_emoji":      p.Emoji,
			"status_expiration": p.Expiration,
		},
	}
	_, _, err := c.postJSON(ctx, "users.profile.set", payload)
	return err
}

// ///////////////////////////////////////////////
// Transport
// ///////////////////////////////////////////////

// apiEnvelope is the header every Slack Web API response carries.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// postForm POSTs a form-encoded API call and returns the raw body and
// response header after envelope checking.
func (c *Client) postForm(ctx context.Context, method string, form url.Values) ([]byte, http.Header, error) {
	return c.post(ctx, method, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// postJSON POSTs a JSON API call and returns the raw body and response
// header after envelope checking.
func (c *Client) postJSON(ctx context.Context, method string, payload any) ([]byte, http.Header, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}
	return c.post(ctx, method, "application/json; charset=utf-8", bytes.NewReader(data))
}

// post performs the HTTP call, enforces the HTTP status, and decodes the
// {"ok":...} envelope. Slack reports most failures inside a 200 response,
// so the envelope check is the one that matters.
func (c *Client) post(ctx context.Context, method, contentType string, body io.Reader) ([]byte, http.Header, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+method, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: reading response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("%s: parse response: %w", method, err)
	}
	if !env.OK {
		return nil, nil, fmt.Errorf("%s: slack error: %s", method, env.Error)
	}
	return raw, resp.Header, nil
}
