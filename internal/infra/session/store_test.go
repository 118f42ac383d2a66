package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return New(config.Config{
		GoEnv:         "test",
		SessionSecret: "session-secret-session-secret-32",
		CookieHashKey: "hash-key-hash-key-hash-key-hash!",
	})
}

// レスポンスのcookieを次のリクエストに載せる
func carry(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestCartToken_RoundTrip(t *testing.T) {
	s := testStore()
	rec := httptest.NewRecorder()
	require.NoError(t, s.SetCartToken(rec, "6f1c7d3e-2b1a-4c1e-9d5b-0c1e2f3a4b5c"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CartCookieName, cookies[0].Name)
	assert.Equal(t, CartCookieMaxAge, cookies[0].MaxAge)

	assert.Equal(t, "6f1c7d3e-2b1a-4c1e-9d5b-0c1e2f3a4b5c", s.CartToken(carry(rec)))
}

func TestCartToken_Tampered(t *testing.T) {
	s := testStore()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CartCookieName, Value: "6f1c7d3e-2b1a-4c1e-9d5b-0c1e2f3a4b5c"})
	assert.Empty(t, s.CartToken(req))
}

func TestCheckoutStorage(t *testing.T) {
	s := testStore()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, s.SaveCheckoutStorage(rec, req, []byte(`{"version":"1.0.0"}`)))

	assert.Equal(t, `{"version":"1.0.0"}`, string(s.CheckoutStorage(carry(rec))))

	rec2 := httptest.NewRecorder()
	require.NoError(t, s.SaveCheckoutStorage(rec2, carry(rec), nil))
	assert.Nil(t, s.CheckoutStorage(carry(rec2)))
}

func TestFlashes_ReadOnce(t *testing.T) {
	s := testStore()
	rec := httptest.NewRecorder()
	require.NoError(t, s.AddFlash(rec, httptest.NewRequest(http.MethodGet, "/", nil), FlashWarning, "adjusted"))

	rec2 := httptest.NewRecorder()
	got, err := s.Flashes(rec2, carry(rec))
	require.NoError(t, err)
	assert.Equal(t, []string{"adjusted"}, got[FlashWarning])

	got, err = s.Flashes(httptest.NewRecorder(), carry(rec2))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrackingID_Stable(t *testing.T) {
	s := testStore()
	rec := httptest.NewRecorder()
	id := s.TrackingID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, id)

	assert.Equal(t, id, s.TrackingID(httptest.NewRecorder(), carry(rec)))
}

func TestLanguageMatcher(t *testing.T) {
	m := NewLanguageMatcher("en", []string{"en", "fr", "de"})

	assert.Equal(t, "fr", m.Negotiate("fr-CH, fr;q=0.9, en;q=0.8"))
	assert.Equal(t, "de", m.Negotiate("de-DE"))
	assert.Equal(t, "en", m.Negotiate(""))
	assert.Equal(t, "en", m.Negotiate("ja"))
}
