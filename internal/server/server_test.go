package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/idempotency"
	"storefront/internal/infra/queue"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/infra/session"
	repo "storefront/internal/repository"
	"storefront/internal/testutil"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const mailKey = "mail:test"

// =====================
// 実repo（SQLite）+ miniredis でサーバー全体を組み立てる
// =====================

type testApp struct {
	srv     *httptest.Server
	db      *gorm.DB
	catalog testutil.Catalog
	queue   *queue.MailQueue
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	gdb := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, gdb)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		GoEnv:         "test",
		JWTSecret:     "test-secret",
		JWTAccessTTL:  time.Hour,
		SessionSecret: "session-secret-session-secret-32",
		CookieHashKey: "hash-key-hash-key-hash-key-hash!",
		BaseURL:       "https://shop.example.com",
	}
	log := zap.NewNop()
	clock := &testutil.FixedClock{T: time.Now()}

	txm := infraRepo.NewTxManagerGorm(gdb)
	userRepo := infraRepo.NewUserGormRepository(gdb)
	cartRepo := infraRepo.NewCartGormRepository(gdb)
	cartLineRepo := infraRepo.NewCartLineGormRepository(gdb)
	cartFieldRepo := infraRepo.NewCartUserFieldGormRepository(gdb)
	categoryRepo := infraRepo.NewCategoryGormRepository(gdb)
	userFieldRepo := infraRepo.NewUserFieldGormRepository(gdb)
	productRepo := infraRepo.NewProductGormRepository(gdb)
	orderRepo := infraRepo.NewOrderGormRepository(gdb)
	orderLineRepo := infraRepo.NewOrderLineGormRepository(gdb)
	orderFieldRepo := infraRepo.NewOrderUserFieldGormRepository(gdb)
	historyRepo := infraRepo.NewOrderHistoryGormRepository(gdb)
	auditRepo := infraRepo.NewAuditLogGormRepository(gdb)

	stock := usecase.UnlimitedStock{}
	mailQueue := queue.NewMailQueue(rdb, mailKey)
	authValidator := validator.NewAuthValidator(userRepo)

	cartUC := usecase.NewCartUsecase(txm, usecase.CartRepos{
		Carts:      cartRepo,
		Lines:      cartLineRepo,
		Entries:    cartFieldRepo,
		Products:   productRepo,
		UserFields: userFieldRepo,
	}, stock, &testutil.SeqIDs{}, clock, log)
	checkoutUC := usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
		Tx:         txm,
		Carts:      cartRepo,
		Lines:      cartLineRepo,
		Entries:    cartFieldRepo,
		UserFields: userFieldRepo,
		History:    historyRepo,
		Users:      userRepo,
		Stock:      stock,
		Notifier:   mailQueue,
		Guard:      idempotency.NewCheckoutGuard(rdb, 30*time.Second),
		Clock:      clock,
		BaseURL:    cfg.BaseURL,
		Log:        log,
	})
	authUC := usecase.NewAuthUsecase(cfg, userRepo, authValidator, cartUC, clock, log)
	catalogUC := usecase.NewCatalogUsecase(categoryRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(orderRepo, orderLineRepo, orderFieldRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderRepo, orderLineRepo, orderFieldRepo, historyRepo, clock)
	exportUC := usecase.NewOrderExportUsecase(categoryRepo, userFieldRepo, orderRepo, orderLineRepo, orderFieldRepo)
	adminCatalogUC := usecase.NewAdminCatalogUsecase(txm, usecase.AdminCatalogRepos{
		Categories: categoryRepo,
		UserFields: userFieldRepo,
		Products:   productRepo,
		Audit:      auditRepo,
		Inventory:  infraRepo.NewInventoryGormRepository(gdb),
	}, clock)
	staffUC := usecase.NewStaffUsecase(txm, userRepo, orderRepo, authValidator, clock)

	store := session.New(cfg)
	e := New(Deps{
		Cfg:       cfg,
		Log:       log,
		Users:     userRepo,
		Carts:     cartUC,
		Store:     store,
		Languages: session.NewLanguageMatcher("en", []string{"en"}),
	},
		handler.NewAuthHandler(authUC, store, cfg.JWTAccessTTL, false),
		handler.NewCatalogHandler(catalogUC, cartUC, store),
		handler.NewCartHandler(cartUC, store),
		handler.NewCheckoutHandler(checkoutUC, store, false),
		handler.NewOrderHandler(orderUC, store),
		handler.NewDashboardCatalogHandler(adminCatalogUC),
		handler.NewDashboardOrderHandler(adminOrderUC, exportUC),
		handler.NewDashboardStaffHandler(staffUC),
	)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, db: gdb, catalog: catalog, queue: mailQueue}
}

// cookie jar付き。リダイレクトは追わない
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) seedUser(t *testing.T, email, password string, role model.Role) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := model.User{Email: email, PasswordHash: string(hash), Role: role, IsActive: true}
	require.NoError(t, a.db.Create(&u).Error)
	return u
}

// JSONでリクエストしてステータスと本文を返す
func doJSON(t *testing.T, client *http.Client, method, u string, body any, token string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, r)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

// 匿名でカートに入れて注文まで進め、注文トークンを返す
func (a *testApp) guestOrder(t *testing.T, client *http.Client) string {
	t.Helper()
	base := a.srv.URL
	pid := a.catalog.Product.ID

	code, _ := doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/products/%d", base, pid), nil, "")
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/products/%d/add", base, pid), map[string]any{
		"variant_id": a.catalog.VariantA.ID,
		"quantity":   2,
	}, "")
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = doJSON(t, client, http.MethodGet, base+"/cart", nil, "")
	require.Equal(t, http.StatusOK, code)
	cart := decode[struct {
		Quantity int `json:"quantity"`
	}](t, body)
	require.Equal(t, 2, cart.Quantity)

	code, body = doJSON(t, client, http.MethodPost, base+"/cart/checkout", nil, "")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "/checkout/summary", decode[map[string]any](t, body)["next"])

	code, body = doJSON(t, client, http.MethodPost, base+"/checkout/summary", map[string]string{
		"email":      "guest@example.com",
		"employeeid": "G-1",
	}, "")
	require.Equal(t, http.StatusCreated, code, string(body))
	placed := decode[struct {
		OrderToken string `json:"order_token"`
		Next       string `json:"next"`
	}](t, body)
	require.NotEmpty(t, placed.OrderToken)
	assert.Equal(t, "/orders/"+placed.OrderToken, placed.Next)
	return placed.OrderToken
}

// =====================
// storefront
// =====================

func TestServer_Health(t *testing.T) {
	app := newTestApp(t)
	code, body := doJSON(t, app.client(t), http.MethodGet, app.srv.URL+"/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", decode[map[string]string](t, body)["status"])
}

func TestServer_GuestCheckoutFlow(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)

	token := app.guestOrder(t, client)

	code, body := doJSON(t, client, http.MethodGet, app.srv.URL+"/orders/"+token, nil, "")
	require.Equal(t, http.StatusOK, code)
	order := decode[struct {
		Status    string `json:"status"`
		UserEmail string `json:"user_email"`
		Quantity  int    `json:"quantity"`
	}](t, body)
	assert.Equal(t, "NEW", order.Status)
	assert.Equal(t, "guest@example.com", order.UserEmail)
	assert.Equal(t, 2, order.Quantity)

	// 確認メールがキューに積まれる
	n, err := app.queue.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// 注文後はカートcookieが消えて空の新しいカートになる
	code, body = doJSON(t, client, http.MethodGet, app.srv.URL+"/cart", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, decode[struct {
		Quantity int `json:"quantity"`
	}](t, body).Quantity)
}

func TestServer_CheckoutRequiresEmail(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	base := app.srv.URL

	code, _ := doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/products/%d/add", base, app.catalog.Product.ID), map[string]any{
		"variant_id": app.catalog.VariantA.ID,
		"quantity":   1,
	}, "")
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, client, http.MethodPost, base+"/checkout/summary", map[string]string{"employeeid": "G-1"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	resp := decode[handler.ErrorResponse](t, body)
	assert.Contains(t, resp.Fields, "email")
}

// フォーム送信は303 + フラッシュ
func TestServer_FormAddRedirectsWithFlash(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	base := app.srv.URL

	form := url.Values{}
	form.Set("variant", fmt.Sprint(app.catalog.VariantB.ID))
	form.Set("quantity", "1")
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/products/%d/add", base, app.catalog.Product.ID), strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := client.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/cart", res.Header.Get("Location"))

	code, body := doJSON(t, client, http.MethodGet, base+"/cart", nil, "")
	require.Equal(t, http.StatusOK, code)
	cart := decode[struct {
		Quantity int                 `json:"quantity"`
		Messages map[string][]string `json:"messages"`
	}](t, body)
	assert.Equal(t, 1, cart.Quantity)
	assert.Equal(t, []string{"Product added to cart."}, cart.Messages["success"])

	// フラッシュは一度だけ
	_, body = doJSON(t, client, http.MethodGet, base+"/cart", nil, "")
	assert.NotContains(t, string(body), "Product added to cart.")
}

// =====================
// dashboard
// =====================

func login(t *testing.T, app *testApp, email, password string) string {
	t.Helper()
	code, body := doJSON(t, app.client(t), http.MethodPost, app.srv.URL+"/account/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, code, string(body))
	res := decode[usecase.AuthLoginResponse](t, body)
	require.NotEmpty(t, res.Token.AccessToken)
	return res.Token.AccessToken
}

func TestServer_DashboardRequiresStaff(t *testing.T) {
	app := newTestApp(t)
	app.seedUser(t, "buyer@example.com", "password123", model.RoleUser)

	code, _ := doJSON(t, app.client(t), http.MethodGet, app.srv.URL+"/dashboard/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	token := login(t, app, "buyer@example.com", "password123")
	code, _ = doJSON(t, app.client(t), http.MethodGet, app.srv.URL+"/dashboard/orders", nil, token)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestServer_StaffShipsOrder(t *testing.T) {
	app := newTestApp(t)
	app.seedUser(t, "staff@example.com", "password123", model.RoleAdmin)

	orderToken := app.guestOrder(t, app.client(t))
	token := login(t, app, "staff@example.com", "password123")
	staff := app.client(t)

	code, body := doJSON(t, staff, http.MethodGet, app.srv.URL+"/dashboard/orders?status=NEW", nil, token)
	require.Equal(t, http.StatusOK, code, string(body))
	list := decode[usecase.AdminOrderListOutput](t, body)
	require.Len(t, list.Items, 1)
	assert.Equal(t, orderToken, list.Items[0].Token)

	orderID := list.Items[0].ID
	code, body = doJSON(t, staff, http.MethodPost, fmt.Sprintf("%s/dashboard/orders/%d/ship", app.srv.URL, orderID), nil, token)
	require.Equal(t, http.StatusOK, code, string(body))

	// 発送済みはキャンセルできない
	code, _ = doJSON(t, staff, http.MethodPost, fmt.Sprintf("%s/dashboard/orders/%d/cancel", app.srv.URL, orderID), nil, token)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = doJSON(t, staff, http.MethodGet, app.srv.URL+"/orders/"+orderToken, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SHIPPED", decode[map[string]any](t, body)["status"])

	// ログアウト後の古いトークンは弾かれる
	code, _ = doJSON(t, staff, http.MethodPost, app.srv.URL+"/account/logout", nil, token)
	require.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, staff, http.MethodGet, app.srv.URL+"/dashboard/orders", nil, token)
	assert.Equal(t, http.StatusUnauthorized, code)
}

// 重複以外の409（更新競合）は既存注文へ飛ばさず確認画面に戻す
func TestServer_CheckoutConflictStaysOnSummary(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	base := app.srv.URL

	require.NoError(t, app.db.Callback().Create().Before("gorm:create").Register("test:conflict_order", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "order_lines" {
			_ = tx.AddError(repo.ErrConflict)
		}
	}))

	code, _ := doJSON(t, client, http.MethodPost, fmt.Sprintf("%s/products/%d/add", base, app.catalog.Product.ID), map[string]any{
		"variant_id": app.catalog.VariantA.ID,
		"quantity":   1,
	}, "")
	require.Equal(t, http.StatusOK, code)

	// JSON: 409だがnextは無い
	code, body := doJSON(t, client, http.MethodPost, base+"/checkout/summary", map[string]string{
		"email":      "guest@example.com",
		"employeeid": "G-1",
	}, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.NotContains(t, decode[map[string]any](t, body), "next")

	// フォーム: /checkout/summary へ戻る
	form := url.Values{}
	form.Set("email", "guest@example.com")
	form.Set("employeeid", "G-1")
	req, err := http.NewRequest(http.MethodPost, base+"/checkout/summary", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := client.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/checkout/summary", res.Header.Get("Location"))

	var orders int64
	require.NoError(t, app.db.Model(&model.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(0), orders)
}
