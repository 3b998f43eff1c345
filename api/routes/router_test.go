package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/internal/visitor"
	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/clientstore"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	backend := http.NewServeMux()
	backend.HandleFunc("/products/p-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"product":{"_id":"p-1","name":"Kurta","price":150}}`)
	})
	backend.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"_id":"p-1","name":"Kurta","price":150}]`)
	})
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := storefront.NewClient(server.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	calc := pricing.NewCalculator(decimal.NewFromInt(50), decimal.NewFromInt(20))
	widget := checkout.NewCallbackWidget()
	factory, err := visitor.NewFactory(visitor.Deps{
		Client:  client,
		Storage: clientstore.NewMemory(),
		Calc:    calc,
		UI:      prompts.NewContextUI(logg),
		Scripts: checkout.NewOnceLoader(time.Second, func(context.Context) error { return nil }),
		Widget:  widget,
		Logger:  logg,
	}, visitor.Config{GuestCartKey: guestcart.DefaultKey, TokenKey: auth.DefaultTokenKey})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		Session: config.SessionConfig{GuestCookieName: "sf_guest", GuestTTL: time.Hour},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	return NewRouter(cfg, logg, nil, map[string]controllers.Pinger{"backend": stubPinger{}}, metrics, factory, checkout.NewRegistry(time.Hour), widget, calc)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var envelope map[string]any
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, envelope
}

func guestCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == "sf_guest" {
			return c
		}
	}
	t.Fatalf("expected guest cookie to be issued")
	return nil
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	resp, _ := doJSON(t, router, http.MethodGet, "/health/live", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected live, got %d", resp.Code)
	}
	resp, _ = doJSON(t, router, http.MethodGet, "/health/ready", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.Code)
	}
	resp, _ = doJSON(t, router, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "# metrics") {
		t.Fatalf("expected metrics, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGuestCartFollowsCookie(t *testing.T) {
	router := newTestRouter(t)

	resp, _ := doJSON(t, router, http.MethodPost, "/api/v1/guest-cart/items", `{"productId":"p-1"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	cookie := guestCookie(t, resp)

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/guest-cart", "", cookie)
	data := envelope["data"].(map[string]any)
	if items := data["items"].([]any); len(items) != 1 {
		t.Fatalf("expected one entry for the cookie's session, got %d", len(items))
	}
	if grand := data["totals"].(map[string]any)["grand"]; grand != "220" {
		t.Fatalf("expected grand 220, got %v", grand)
	}

	_, envelope = doJSON(t, router, http.MethodGet, "/api/v1/guest-cart", "")
	if items := envelope["data"].(map[string]any)["items"].([]any); len(items) != 0 {
		t.Fatalf("a new visitor must start empty, got %d", len(items))
	}
}

func TestCatalogIsPublic(t *testing.T) {
	router := newTestRouter(t)
	resp, envelope := doJSON(t, router, http.MethodGet, "/api/v1/products", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if products := envelope["data"].([]any); len(products) != 1 {
		t.Fatalf("expected one product, got %v", products)
	}
}

func TestAccountRoutesRequireLogin(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/api/v1/cart", "/api/v1/addresses", "/api/v1/orders"} {
		resp, envelope := doJSON(t, router, http.MethodGet, path, "")
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.Code)
		}
		nav := envelope["meta"].(map[string]any)["navigation"].(map[string]any)
		if nav["route"] != "/login" {
			t.Fatalf("%s: expected login navigation, got %v", path, nav)
		}
	}
	resp, _ := doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions/s-1/place", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before idempotency checks, got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "X-Confirm")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
