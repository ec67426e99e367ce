package external

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	tokenRefreshMargin = 30 * time.Second
	defaultTokenTTL    = 7200 * time.Second
	ttlockPageSize     = 100
)

type TTLockConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Timeout      time.Duration
}

// Response is a lock provider response body decoded verbatim. Provider
// failures are reported in errcode, not as HTTP errors.
type Response map[string]any

// ErrCode returns the provider error code; a missing code means success.
func (r Response) ErrCode() int {
	v, ok := r["errcode"]
	if !ok {
		return 0
	}
	n, _ := toInt64(v)
	return int(n)
}

func (r Response) ErrMsg() string {
	if s, ok := r["errmsg"].(string); ok {
		return s
	}
	return ""
}

func (r Response) OK() bool { return r.ErrCode() == 0 }

// Int64 reads a numeric field regardless of its JSON representation.
func (r Response) Int64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// LockKey is an accessible lock as reported by the eKey listing.
type LockKey struct {
	KeyID     int64  `json:"keyId"`
	LockID    int64  `json:"lockId"`
	LockAlias string `json:"lockAlias"`
	LockName  string `json:"lockName"`
}

type Lock struct {
	LockID    int64  `json:"lockId"`
	LockAlias string `json:"lockAlias"`
	LockName  string `json:"lockName"`
}

type Passcode struct {
	KeyboardPwdID   int64  `json:"keyboardPwdId"`
	KeyboardPwd     string `json:"keyboardPwd"`
	KeyboardPwdName string `json:"keyboardPwdName"`
	StartDate       int64  `json:"startDate"`
	EndDate         int64  `json:"endDate"`
	Status          int    `json:"status"`
}

type AddPasscodeRequest struct {
	LockID  int64
	PIN     string
	Name    string
	StartAt int64
	EndAt   int64
}

type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || c.expiresAt.Sub(now) <= tokenRefreshMargin {
		return "", false
	}
	return c.token, true
}

func (c *tokenCache) set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// TTLockClient talks to the smart-lock cloud API. Each instance owns its
// credential cache. Concurrent callers may refresh the token redundantly.
type TTLockClient struct {
	cfg        TTLockConfig
	httpClient *http.Client
	tokens     tokenCache
	now        func() time.Time
	onRefresh  func()
}

type TTLockOption func(*TTLockClient)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) TTLockOption {
	return func(c *TTLockClient) { c.now = now }
}

// WithRefreshHook is called after every successful token exchange.
func WithRefreshHook(fn func()) TTLockOption {
	return func(c *TTLockClient) { c.onRefresh = fn }
}

func NewTTLockClient(cfg TTLockConfig, opts ...TTLockOption) *TTLockClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := &TTLockClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// AccessToken returns the cached token while more than 30s of validity remain,
// otherwise exchanges credentials for a new one.
func (c *TTLockClient) AccessToken(ctx context.Context) (string, error) {
	now := c.now()
	if token, ok := c.tokens.get(now); ok {
		return token, nil
	}

	form := url.Values{}
	form.Set("clientId", c.cfg.ClientID)
	form.Set("clientSecret", c.cfg.ClientSecret)
	form.Set("username", c.cfg.Username)
	// The provider contract requires the MD5 digest of the account password.
	form.Set("password", md5Hex(c.cfg.Password))
	form.Set("date", strconv.FormatInt(now.UnixMilli(), 10))

	body, err := c.postForm(ctx, "/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("failed to obtain lock provider token: %w", err)
	}

	token, _ := body["access_token"].(string)
	if token == "" {
		return "", fmt.Errorf("lock provider token exchange failed: errcode=%d errmsg=%s", body.ErrCode(), body.ErrMsg())
	}

	ttl := defaultTokenTTL
	if secs, ok := body.Int64("expires_in"); ok && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.tokens.set(token, now.Add(ttl))
	if c.onRefresh != nil {
		c.onRefresh()
	}
	return token, nil
}

// Post sends an authenticated form request and returns the body verbatim.
func (c *TTLockClient) Post(ctx context.Context, path string, form url.Values) (Response, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("clientId", c.cfg.ClientID)
	form.Set("accessToken", token)
	form.Set("date", strconv.FormatInt(c.now().UnixMilli(), 10))
	return c.postForm(ctx, path, form)
}

func (c *TTLockClient) postForm(ctx context.Context, path string, form url.Values) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: raw}
	}

	var body Response
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return body, nil
}

type pagedList[T any] struct {
	List    []T `json:"list"`
	PageNo  int `json:"pageNo"`
	Pages   int `json:"pages"`
	ErrCode int `json:"errcode"`
}

// fetchAll walks every page of a provider list endpoint.
func fetchAll[T any](ctx context.Context, c *TTLockClient, path string, extra url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		form := url.Values{}
		for k, v := range extra {
			form[k] = v
		}
		form.Set("pageNo", strconv.Itoa(page))
		form.Set("pageSize", strconv.Itoa(ttlockPageSize))

		body, err := c.Post(ctx, path, form)
		if err != nil {
			return nil, err
		}
		if !body.OK() {
			return nil, fmt.Errorf("%s failed: errcode=%d errmsg=%s", path, body.ErrCode(), body.ErrMsg())
		}

		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode %s page: %w", path, err)
		}
		var pg pagedList[T]
		if err := json.Unmarshal(raw, &pg); err != nil {
			return nil, fmt.Errorf("failed to decode %s page: %w", path, err)
		}
		all = append(all, pg.List...)

		if len(pg.List) == 0 || pg.Pages <= page {
			return all, nil
		}
	}
}

// ListKeys returns every lock the account can access, with provider aliases.
func (c *TTLockClient) ListKeys(ctx context.Context) ([]LockKey, error) {
	return fetchAll[LockKey](ctx, c, "/v3/key/list", nil)
}

func (c *TTLockClient) ListLocks(ctx context.Context) ([]Lock, error) {
	return fetchAll[Lock](ctx, c, "/v3/lock/list", nil)
}

func (c *TTLockClient) ListPasscodes(ctx context.Context, lockID int64) ([]Passcode, error) {
	extra := url.Values{}
	extra.Set("lockId", strconv.FormatInt(lockID, 10))
	return fetchAll[Passcode](ctx, c, "/v3/lock/listKeyboardPwd", extra)
}

// AddPasscode creates a custom PIN through the gateway (addType=2).
func (c *TTLockClient) AddPasscode(ctx context.Context, req AddPasscodeRequest) (Response, error) {
	form := url.Values{}
	form.Set("lockId", strconv.FormatInt(req.LockID, 10))
	form.Set("keyboardPwd", req.PIN)
	form.Set("keyboardPwdName", req.Name)
	form.Set("startDate", strconv.FormatInt(req.StartAt, 10))
	form.Set("endDate", strconv.FormatInt(req.EndAt, 10))
	form.Set("addType", "2")
	return c.Post(ctx, "/v3/keyboardPwd/add", form)
}

func (c *TTLockClient) DeletePasscode(ctx context.Context, lockID, passcodeID int64) (Response, error) {
	form := url.Values{}
	form.Set("lockId", strconv.FormatInt(lockID, 10))
	form.Set("keyboardPwdId", strconv.FormatInt(passcodeID, 10))
	form.Set("deleteType", "2")
	return c.Post(ctx, "/v3/keyboardPwd/delete", form)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
