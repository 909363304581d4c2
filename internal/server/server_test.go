package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"shoppingcart/internal/config"
	"shoppingcart/internal/handler"
	"shoppingcart/internal/repository/repotest"
	"shoppingcart/internal/session"
	"shoppingcart/internal/usecase"
	"shoppingcart/internal/validator"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// Fakes / helper
// =====================

type stubProvider struct {
	claims []usecase.Claim
}

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (p *stubProvider) Exchange(_ context.Context, _ string) ([]usecase.Claim, error) {
	return p.claims, nil
}

type counterIDs struct{ n int }

func (g *counterIDs) NewID() string {
	g.n++
	return fmt.Sprintf("state-%d", g.n)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type testApp struct {
	e        *echo.Echo
	provider *stubProvider
	items    *repotest.CartItems
	users    *repotest.Users
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithLog(t, zap.NewNop())
}

func newTestAppWithLog(t *testing.T, log *zap.Logger) *testApp {
	t.Helper()

	users := repotest.NewUsers()
	items := repotest.NewCartItems()
	tx := repotest.NewTxManager(users, items)
	v := validator.NewInputValidator()

	provider := &stubProvider{claims: []usecase.Claim{
		{Type: usecase.ClaimSubject, Value: "sub-alice"},
		{Type: usecase.ClaimEmail, Value: "alice@example.com"},
		{Type: usecase.ClaimName, Value: "Alice"},
	}}

	authUC := usecase.NewAuthUsecase(tx, v, wallClock{}, log)
	cartUC := usecase.NewCartUsecase(items, tx, v, wallClock{}, log)
	flow := usecase.NewLoginFlow(provider, authUC, users, &counterIDs{}, log)
	sessions := session.NewManager([]byte("0123456789abcdef0123"), time.Hour, false)

	cfg := config.Config{
		CORSOrigins:   []string{"https://localhost:7085"},
		MaxImageBytes: 16,
	}
	e := New(cfg, Routes{
		Cart:     handler.NewCartHandler(cartUC, cfg.MaxImageBytes, log),
		Login:    handler.NewLoginHandler(flow, sessions, log),
		Sessions: sessions,
		Users:    users,
		Log:      log,
	})

	return &testApp{e: e, provider: provider, items: items, users: users}
}

func (a *testApp) do(t *testing.T, method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login → callback で発行されたセッションcookieを返す
func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()

	rec := a.do(t, http.MethodGet, "/api/login/login", "")
	require.Equal(t, http.StatusFound, rec.Code)
	state := findCookie(rec, session.StateCookieName)
	require.NotNil(t, state)

	rec = a.do(t, http.MethodGet, "/api/login/signin-google?code=abc&state="+url.QueryEscape(state.Value), "", state)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := findCookie(rec, session.CookieName)
	require.NotNil(t, sess)
	return sess
}

type itemResponse struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

func decodeItems(t *testing.T, rec *httptest.ResponseRecorder) []itemResponse {
	t.Helper()
	var out []itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var out handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =====================
// Login
// =====================

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_RecordsRecoveredPanic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := newTestAppWithLog(t, zap.New(core))
	app.e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	rec := app.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	lines := logs.FilterMessage("request").All()
	require.Len(t, lines, 1)
	assert.Equal(t, "/boom", lines[0].ContextMap()["uri"])
	assert.EqualValues(t, http.StatusInternalServerError, lines[0].ContextMap()["status"])
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/login/login", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=state-1", rec.Header().Get(echo.HeaderLocation))

	state := findCookie(rec, session.StateCookieName)
	require.NotNil(t, state)
	assert.Equal(t, "state-1", state.Value)
	assert.True(t, state.HttpOnly)
}

func TestSignIn_SetsSessionCookie(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/login/login", "")
	state := findCookie(rec, session.StateCookieName)

	rec = app.do(t, http.MethodGet, "/api/login/signin-google?code=abc&state=state-1", "", state)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome, Alice!", rec.Body.String())

	sess := findCookie(rec, session.CookieName)
	require.NotNil(t, sess)
	assert.True(t, sess.HttpOnly)
	assert.Equal(t, 1, app.users.Count())
}

func TestSignIn_Failures_NoSessionCookie(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		state   bool
		claims  []usecase.Claim
		message string
	}{
		{"provider error", "?error=access_denied", true, nil, "Authentication failed: access_denied"},
		{"state mismatch", "?code=abc&state=other", true, nil, "Authentication failed for an unknown reason."},
		{"no state cookie", "?code=abc&state=state-1", false, nil, "Authentication failed for an unknown reason."},
		{"no email claim", "?code=abc&state=state-1", true, []usecase.Claim{{Type: usecase.ClaimSubject, Value: "s"}}, "Email claim is missing."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if tt.claims != nil {
				app.provider.claims = tt.claims
			}

			var cookies []*http.Cookie
			if tt.state {
				rec := app.do(t, http.MethodGet, "/api/login/login", "")
				cookies = append(cookies, findCookie(rec, session.StateCookieName))
			}

			rec := app.do(t, http.MethodGet, "/api/login/signin-google"+tt.query, "", cookies...)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, findCookie(rec, session.CookieName))
			assert.Equal(t, tt.message, decodeError(t, rec).Error)
			assert.Equal(t, 0, app.users.Count())
		})
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	rec := app.do(t, http.MethodGet, "/api/cart/items", "", sess)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/login/logout", "", sess)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out", rec.Body.String())
	cleared := findCookie(rec, session.CookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)

	// 古いcookieを再送しても通らない
	rec = app.do(t, http.MethodGet, "/api/cart/items", "", sess)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RequiresSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/login/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// Cart
// =====================

func TestCart_RequiresSession(t *testing.T) {
	app := newTestApp(t)

	for _, r := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/cart/items", ""},
		{http.MethodPost, "/api/cart/items", `{"name":"Widget","price":9.99,"quantity":3}`},
		{http.MethodPut, "/api/cart/items/1", `{"name":"Widget","price":9.99,"quantity":3}`},
		{http.MethodDelete, "/api/cart/items/1", ""},
	} {
		rec := app.do(t, r.method, r.path, r.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
	}
	assert.Equal(t, 0, app.items.Len())
}

func TestCart_CRUD(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	rec := app.do(t, http.MethodPost, "/api/cart/items", `{"name":"Widget","price":9.99,"quantity":3}`, sess)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, "9.99", created.Price)
	assert.Equal(t, fmt.Sprintf("/api/cart/items/%d", created.ID), rec.Header().Get(echo.HeaderLocation))

	rec = app.do(t, http.MethodGet, "/api/cart/items?page=1&pageSize=10", "", sess)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeItems(t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)

	path := fmt.Sprintf("/api/cart/items/%d", created.ID)

	rec = app.do(t, http.MethodPut, path, `{"name":"Widget","price":9.99,"quantity":5}`, sess)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodPut, path, `{"name":"Widget","price":0,"quantity":5}`, sess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Price must be greater than 0.", decodeError(t, rec).Error)

	rec = app.do(t, http.MethodGet, path, "", sess)
	require.Equal(t, http.StatusOK, rec.Code)
	var got itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 5, got.Quantity)

	rec = app.do(t, http.MethodDelete, path, "", sess)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/cart/items", "", sess)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeItems(t, rec))
}

func TestCart_Create_ValidationError(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	rec := app.do(t, http.MethodPost, "/api/cart/items", `{"name":"","price":1,"quantity":0}`, sess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, string(usecase.KindValidation), body.Kind)
	assert.ElementsMatch(t, []string{"name", "quantity"}, body.Fields)
	assert.Equal(t, 0, app.items.Len())
}

func TestCart_Create_MalformedBody(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	rec := app.do(t, http.MethodPost, "/api/cart/items", `{"name":`, sess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_Create_IdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"name":"Widget","price":9.99,"quantity":1}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("Idempotency-Key", "k-1")
		req.AddCookie(sess)
		rec := httptest.NewRecorder()
		app.e.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Header().Get(echo.HeaderLocation), second.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 1, app.items.Len())
}

func TestCart_Create_Multipart(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	newForm := func(image []byte) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("name", "Photo"))
		require.NoError(t, w.WriteField("price", "12.50"))
		require.NoError(t, w.WriteField("quantity", "1"))
		fw, err := w.CreateFormFile("image", "p.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return &buf, w.FormDataContentType()
	}

	body, ct := newForm([]byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.AddCookie(sess)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Price     string `json:"price"`
		ImageData []byte `json:"image_data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "12.5", created.Price)
	assert.Equal(t, []byte("png-bytes"), created.ImageData)

	// MaxImageBytes(16)を超える
	body, ct = newForm(bytes.Repeat([]byte("x"), 17))
	req = httptest.NewRequest(http.MethodPost, "/api/cart/items", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.AddCookie(sess)
	rec = httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image too large", decodeError(t, rec).Error)
}

func TestCart_OtherUsersItem(t *testing.T) {
	app := newTestApp(t)
	alice := app.login(t)

	rec := app.do(t, http.MethodPost, "/api/cart/items", `{"name":"Widget","price":9.99,"quantity":3}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := rec.Header().Get(echo.HeaderLocation)

	app.provider.claims = []usecase.Claim{
		{Type: usecase.ClaimSubject, Value: "sub-bob"},
		{Type: usecase.ClaimEmail, Value: "bob@example.com"},
	}
	bob := app.login(t)

	rec = app.do(t, http.MethodGet, "/api/cart/items", "", bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeItems(t, rec))

	rec = app.do(t, http.MethodGet, path, "", bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPut, path, `{"name":"Mine","price":1,"quantity":1}`, bob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(usecase.KindNotFoundOrNotOwned), decodeError(t, rec).Kind)

	rec = app.do(t, http.MethodDelete, path, "", bob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, path, "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var got itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Widget", got.Name)
}

func TestCart_List_InvalidPaging(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t)

	for _, q := range []string{"?page=0", "?pageSize=101", "?page=abc"} {
		rec := app.do(t, http.MethodGet, "/api/cart/items"+q, "", sess)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}
