package session

import (
	"net/http"
	"time"

	"storefront/internal/config"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	CartCookieName     = "cart"
	TrackingCookieName = "tracking_id"
	sessionName        = "storefront"
	checkoutKey        = "checkout_storage"
)

// 匿名カートのcookieは約10年
const CartCookieMaxAge = int(10 * 365 * 24 * time.Hour / time.Second)

// Flashのレベル
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Store は署名付きcookieとセッションをまとめたもの。
type Store struct {
	cookies  *securecookie.SecureCookie
	sessions *sessions.CookieStore
	secure   bool
}

func New(cfg config.Config) *Store {
	var block []byte
	if cfg.CookieBlockKey != "" {
		block = []byte(cfg.CookieBlockKey)
	}

	ss := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	ss.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{
		cookies:  securecookie.New([]byte(cfg.CookieHashKey), block),
		sessions: ss,
		secure:   cfg.IsProd(),
	}
}

// 改ざん・期限切れは空文字
func (s *Store) CartToken(r *http.Request) string {
	c, err := r.Cookie(CartCookieName)
	if err != nil {
		return ""
	}
	var token string
	if err := s.cookies.Decode(CartCookieName, c.Value, &token); err != nil {
		return ""
	}
	return token
}

func (s *Store) SetCartToken(w http.ResponseWriter, token string) error {
	encoded, err := s.cookies.Encode(CartCookieName, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   CartCookieMaxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Store) ClearCartToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
	})
}

// 無ければ発行してcookieに入れる
func (s *Store) TrackingID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(TrackingCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     TrackingCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   CartCookieMaxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// 保存済みのcheckout状態（無ければnil）
func (s *Store) CheckoutStorage(r *http.Request) []byte {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw, _ := sess.Values[checkoutKey].(string)
	if raw == "" {
		return nil
	}
	return []byte(raw)
}

// rawがnilならセッションから消す
func (s *Store) SaveCheckoutStorage(w http.ResponseWriter, r *http.Request, raw []byte) error {
	sess, _ := s.sessions.Get(r, sessionName)
	if raw == nil {
		delete(sess.Values, checkoutKey)
	} else {
		sess.Values[checkoutKey] = string(raw)
	}
	return sess.Save(r, w)
}

func (s *Store) AddFlash(w http.ResponseWriter, r *http.Request, level string, msg string) error {
	sess, _ := s.sessions.Get(r, sessionName)
	sess.AddFlash(msg, level)
	return sess.Save(r, w)
}

// 読んだFlashは消える
func (s *Store) Flashes(w http.ResponseWriter, r *http.Request) (map[string][]string, error) {
	sess, _ := s.sessions.Get(r, sessionName)
	out := map[string][]string{}
	for _, level := range []string{FlashSuccess, FlashWarning, FlashError} {
		for _, f := range sess.Flashes(level) {
			if msg, ok := f.(string); ok {
				out[level] = append(out[level], msg)
			}
		}
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, sess.Save(r, w)
}
