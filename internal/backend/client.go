package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "taskbot/pkg/logx"
)

const maxErrorBody = 4 << 10

// TokenSource supplies the current bearer token. An empty string means the
// caller is not logged in.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64 // <= 0 disables pacing
	UserAgent  string
	HTTPClient *http.Client
}

type Client struct {
	base    string
	ua      string
	hc      *http.Client
	limiter *rate.Limiter
	tokens  TokenSource
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "taskbot"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{base: base, ua: ua, hc: hc, limiter: lim, log: log}
}

// WithTokens returns a client that authenticates with ts. The HTTP client and
// rate limiter are shared with c.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) Signup(ctx context.Context, creds Credentials) error {
	return c.do(ctx, http.MethodPost, routeSignup, false, creds, nil)
}

func (c *Client) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	var tp TokenPair
	err := c.do(ctx, http.MethodPost, routeLogin, false, creds, &tp)
	return tp, err
}

func (c *Client) RefreshToken(ctx context.Context, refresh string) (TokenPair, error) {
	var tp TokenPair
	err := c.do(ctx, http.MethodPost, routeRefreshToken, false, refreshRequest{RefreshToken: refresh}, &tp)
	return tp, err
}

func (c *Client) ChangePassword(ctx context.Context, req ChangePassword) error {
	return c.do(ctx, http.MethodPost, routeChangePassword, true, req, nil)
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, routeProfile, true, nil, &p)
	return p, err
}

func (c *Client) UpdateUser(ctx context.Context, u UserUpdate) (User, error) {
	var out User
	err := c.do(ctx, http.MethodPut, routeUserUpdate, true, u, &out)
	return out, err
}

func (c *Client) CreateNote(ctx context.Context, in NoteInput) (UserNote, error) {
	var out UserNote
	err := c.do(ctx, http.MethodPost, routeUserNotes, true, in, &out)
	return out, err
}

func (c *Client) UpdateNote(ctx context.Context, id string, in NoteInput) (UserNote, error) {
	var out UserNote
	err := c.do(ctx, http.MethodPut, expand(routeUserNote, "userNoteId", id), true, in, &out)
	return out, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, expand(routeUserNote, "userNoteId", id), true, nil, nil)
}

// CreateTask uses PUT on the collection, as the service expects.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodPut, routeUserTasks, true, in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, u TaskUpdate) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodPut, expand(routeUserTask, "taskId", id), true, u, &out)
	return out, err
}

// CompleteTask records a completion at the given instant (sent in UTC).
func (c *Client) CompleteTask(ctx context.Context, id string, at time.Time) (Task, error) {
	at = at.UTC()
	return c.UpdateTask(ctx, id, TaskUpdate{LastCompleted: &at})
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, expand(routeUserTask, "taskId", id), true, nil, nil)
}

func (c *Client) CreateGroup(ctx context.Context, name string) (Group, error) {
	var out Group
	err := c.do(ctx, http.MethodPost, routeGroups, true, groupInput{Name: name}, &out)
	return out, err
}

func (c *Client) UpdateGroup(ctx context.Context, id, name string) (Group, error) {
	var out Group
	err := c.do(ctx, http.MethodPut, expand(routeGroup, "groupId", id), true, groupInput{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, expand(routeGroup, "groupId", id), true, nil, nil)
}

func (c *Client) JoinGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodPost, routeMemberships, true, membership{GroupID: groupID}, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, routeMemberships, true, membership{GroupID: groupID}, nil)
}

func (c *Client) CreateGroupNote(ctx context.Context, groupID string, in NoteInput) (GroupNote, error) {
	var out GroupNote
	err := c.do(ctx, http.MethodPost, expand(routeGroupNotes, "groupId", groupID), true, in, &out)
	return out, err
}

func (c *Client) UpdateGroupNote(ctx context.Context, groupID, noteID string, in NoteInput) (GroupNote, error) {
	var out GroupNote
	path := expand(routeGroupNote, "groupId", groupID, "groupNoteId", noteID)
	err := c.do(ctx, http.MethodPut, path, true, in, &out)
	return out, err
}

func (c *Client) DeleteGroupNote(ctx context.Context, groupID, noteID string) error {
	path := expand(routeGroupNote, "groupId", groupID, "groupNoteId", noteID)
	return c.do(ctx, http.MethodDelete, path, true, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	var token string
	if auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return fmt.Errorf("%s %s: %w", method, path, ErrNoToken)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			logx.String("request_id", reqID),
			logx.String("method", method),
			logx.String("path", path),
			logx.Err(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("request",
		logx.String("request_id", reqID),
		logx.String("method", method),
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
