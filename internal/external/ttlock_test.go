package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLockCloud struct {
	tokenCalls atomic.Int32
	expiresIn  int
	handlers   map[string]http.HandlerFunc

	mu       sync.Mutex
	lastForm map[string]map[string]string
}

func (f *fakeLockCloud) form(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm[path]
}

func newFakeLockCloud(t *testing.T) (*fakeLockCloud, *httptest.Server) {
	t.Helper()
	f := &fakeLockCloud{
		expiresIn: 7200,
		handlers:  map[string]http.HandlerFunc{},
		lastForm:  map[string]map[string]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.lastForm[r.URL.Path] = form
		f.mu.Unlock()

		if r.URL.Path == "/oauth2/token" {
			f.tokenCalls.Add(1)
			writeJSON(w, map[string]any{"access_token": "tok-1", "expires_in": f.expiresIn})
			return
		}
		if h, ok := f.handlers[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestLockClient(srv *httptest.Server, now func() time.Time, opts ...TTLockOption) *TTLockClient {
	cfg := TTLockConfig{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "hostel",
		Password:     "hunter2",
	}
	return NewTTLockClient(cfg, append([]TTLockOption{WithClock(now)}, opts...)...)
}

func TestAccessToken_CachesUntilMargin(t *testing.T) {
	cloud, srv := newFakeLockCloud(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	refreshes := 0
	client := newTestLockClient(srv, func() time.Time { return now }, WithRefreshHook(func() { refreshes++ }))

	token, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	form := cloud.form("/oauth2/token")
	assert.Equal(t, md5Hex("hunter2"), form["password"])
	assert.Len(t, form["password"], 32)
	assert.Equal(t, "1710072000000", form["date"])

	now = now.Add(7200*time.Second - 31*time.Second)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), cloud.tokenCalls.Load())

	now = now.Add(2 * time.Second)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), cloud.tokenCalls.Load())
	assert.Equal(t, 2, refreshes)
}

func TestAccessToken_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"errcode": 10003, "errmsg": "invalid account"})
	}))
	defer srv.Close()
	client := newTestLockClient(srv, time.Now)

	_, err := client.AccessToken(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "errcode=10003")
}

func TestPost_ReturnsProviderErrorsAsBody(t *testing.T) {
	cloud, srv := newFakeLockCloud(t)
	cloud.handlers["/v3/keyboardPwd/add"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"errcode": -3008, "errmsg": "passcode already exists"})
	}
	client := newTestLockClient(srv, time.Now)

	resp, err := client.AddPasscode(context.Background(), AddPasscodeRequest{
		LockID: 11, PIN: "123456", Name: "R1-12", StartAt: 1000, EndAt: 2000,
	})

	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, -3008, resp.ErrCode())
	assert.Equal(t, "passcode already exists", resp.ErrMsg())

	form := cloud.form("/v3/keyboardPwd/add")
	assert.Equal(t, "tok-1", form["accessToken"])
	assert.Equal(t, "cid", form["clientId"])
	assert.Equal(t, "2", form["addType"])
	assert.Equal(t, "123456", form["keyboardPwd"])
	assert.Equal(t, "R1-12", form["keyboardPwdName"])
	assert.Equal(t, "11", form["lockId"])
}

func TestPost_HTTPFailureIsError(t *testing.T) {
	cloud, srv := newFakeLockCloud(t)
	cloud.handlers["/v3/keyboardPwd/delete"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}
	client := newTestLockClient(srv, time.Now)

	_, err := client.DeletePasscode(context.Background(), 11, 99)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "2", cloud.form("/v3/keyboardPwd/delete")["deleteType"])
}

func TestListKeys_WalksPages(t *testing.T) {
	cloud, srv := newFakeLockCloud(t)
	cloud.handlers["/v3/key/list"] = func(w http.ResponseWriter, r *http.Request) {
		switch r.PostForm.Get("pageNo") {
		case "1":
			writeJSON(w, map[string]any{"pageNo": 1, "pages": 2, "list": []map[string]any{
				{"keyId": 1, "lockId": 11, "lockAlias": "Door 12"},
			}})
		default:
			writeJSON(w, map[string]any{"pageNo": 2, "pages": 2, "list": []map[string]any{
				{"keyId": 2, "lockId": 12, "lockAlias": "Main Entrance"},
			}})
		}
	}
	client := newTestLockClient(srv, time.Now)

	keys, err := client.ListKeys(context.Background())

	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, int64(12), keys[1].LockID)
	assert.Equal(t, "Main Entrance", keys[1].LockAlias)
	assert.Equal(t, int32(1), cloud.tokenCalls.Load())
}

func TestListPasscodes_ProviderError(t *testing.T) {
	cloud, srv := newFakeLockCloud(t)
	cloud.handlers["/v3/lock/listKeyboardPwd"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"errcode": -2018, "errmsg": "permission denied"})
	}
	client := newTestLockClient(srv, time.Now)

	_, err := client.ListPasscodes(context.Background(), 11)

	require.Error(t, err)
	assert.Equal(t, "11", cloud.form("/v3/lock/listKeyboardPwd")["lockId"])
}

func TestResponse_Accessors(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"keyboardPwdId": 4567, "errcode": "0"}`), &r))

	id, ok := r.Int64("keyboardPwdId")
	assert.True(t, ok)
	assert.Equal(t, int64(4567), id)
	assert.True(t, r.OK())

	assert.True(t, Response{}.OK(), "missing errcode means success")
}
