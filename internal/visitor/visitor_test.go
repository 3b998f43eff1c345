package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/clientstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

type backend struct {
	mu     sync.Mutex
	token  string
	adds   map[string]int
	auths  []string
	logins int
	// rejectOnce fails the next add of each listed product.
	rejectOnce map[string]bool
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logins++
		b.mu.Unlock()
		var creds storefront.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid email or password"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"token":%q,"user":{"_id":"u-1","name":"Asha","email":%q}}`, b.token, creds.Email)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.auths = append(b.auths, r.Header.Get("Authorization"))
		var items []string
		for productID, qty := range b.adds {
			items = append(items, fmt.Sprintf(`{"_id":"ci-%s","quantity":%d,"product":{"_id":%q,"name":"P","price":100}}`, productID, qty, productID))
		}
		_, _ = fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	})
	mux.HandleFunc("/cart/items", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode add: %v", err)
		}
		b.mu.Lock()
		if b.rejectOnce[body.ProductID] {
			delete(b.rejectOnce, body.ProductID)
			b.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"message":"inventory unavailable"}`)
			return
		}
		b.adds[body.ProductID] += body.Quantity
		b.auths = append(b.auths, r.Header.Get("Authorization"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func (b *backend) snapshot() (map[string]int, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	adds := make(map[string]int, len(b.adds))
	for k, v := range b.adds {
		adds[k] = v
	}
	return adds, append([]string(nil), b.auths...)
}

func signToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newFactory(t *testing.T, b *backend) (*Factory, clientstore.Store) {
	t.Helper()
	server := httptest.NewServer(b.handler(t))
	t.Cleanup(server.Close)

	client, err := storefront.NewClient(server.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	storage := clientstore.NewMemory()
	factory, err := NewFactory(Deps{
		Client:  client,
		Storage: storage,
		Calc:    pricing.NewCalculator(decimal.NewFromInt(50), decimal.NewFromInt(20)),
		UI:      prompts.NewContextUI(logg),
		Scripts: checkout.NewOnceLoader(time.Second, func(context.Context) error { return nil }),
		Widget:  checkout.NewCallbackWidget(),
		Logger:  logg,
	}, Config{GuestCartKey: guestcart.DefaultKey, TokenKey: auth.DefaultTokenKey})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	return factory, storage
}

func TestNewFactoryRequiresDeps(t *testing.T) {
	if _, err := NewFactory(Deps{}, Config{}); err == nil {
		t.Fatalf("expected error without client")
	}
}

func TestFactoryCachesAndSweepsVisitors(t *testing.T) {
	factory, _ := newFactory(t, &backend{adds: map[string]int{}})
	ctx := context.Background()

	first, err := factory.For(ctx, "guest-1")
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	again, _ := factory.For(ctx, "guest-1")
	if first != again {
		t.Fatalf("expected cached visitor")
	}
	other, _ := factory.For(ctx, "guest-2")
	if other == first || other.GuestCart == first.GuestCart {
		t.Fatalf("visitors must not share state")
	}
	if _, err := factory.For(ctx, "  "); err == nil {
		t.Fatalf("expected error for empty session")
	}

	base := time.Now()
	factory.now = func() time.Time { return base.Add(2 * defaultIdleTTL) }
	if _, err := factory.For(ctx, "guest-3"); err != nil {
		t.Fatalf("for: %v", err)
	}
	if factory.Len() != 1 {
		t.Fatalf("expected idle visitors to be swept, got %d", factory.Len())
	}
}

func TestSignInImportsGuestCart(t *testing.T) {
	b := &backend{adds: map[string]int{}, token: signToken(t, "u-1", time.Hour)}
	factory, storage := newFactory(t, b)
	ctx := prompts.WithRecorder(context.Background(), prompts.NewRecorder(false))

	v, err := factory.For(ctx, "guest-1")
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	for _, id := range []string{"p-1", "p-1", "p-2"} {
		if _, err := v.GuestCart.Add(ctx, guestcart.Product{ID: id, Name: "P", UnitPrice: decimal.NewFromInt(100)}); err != nil {
			t.Fatalf("guest add: %v", err)
		}
	}

	session, merged, err := v.Auth.SignIn(ctx, storefront.Credentials{Email: "asha@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.User.ID != "u-1" {
		t.Fatalf("unexpected user %+v", session.User)
	}
	adds, auths := b.snapshot()
	if adds["p-1"] != 2 || adds["p-2"] != 1 {
		t.Fatalf("expected grouped import, got %v", adds)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("expected merged server cart, got %+v", merged.Items)
	}
	if len(v.GuestCart.Items()) != 0 {
		t.Fatalf("guest cart should be cleared after import")
	}
	for _, header := range auths {
		if header != "Bearer "+b.token {
			t.Fatalf("expected stored bearer on every call, got %q", header)
		}
	}
	stored, ok, _ := clientstore.Scoped(storage, "guest-1").Get(ctx, auth.DefaultTokenKey)
	if !ok || stored != b.token {
		t.Fatalf("token not persisted for the session")
	}

	userID, err := v.Auth.UserID(ctx)
	if err != nil || userID != "u-1" {
		t.Fatalf("expected user id u-1, got %q (%v)", userID, err)
	}
	if err := v.Auth.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if userID, _ := v.Auth.UserID(ctx); userID != "" {
		t.Fatalf("expected anonymous after sign out, got %q", userID)
	}
}

func TestSignInKeepsOnlyFailedGuestLines(t *testing.T) {
	b := &backend{adds: map[string]int{}, token: signToken(t, "u-1", time.Hour), rejectOnce: map[string]bool{"p-2": true}}
	factory, _ := newFactory(t, b)
	rec := prompts.NewRecorder(false)
	ctx := prompts.WithRecorder(context.Background(), rec)

	v, err := factory.For(ctx, "guest-1")
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	for _, id := range []string{"p-1", "p-2"} {
		if _, err := v.GuestCart.Add(ctx, guestcart.Product{ID: id, Name: "P", UnitPrice: decimal.NewFromInt(100)}); err != nil {
			t.Fatalf("guest add: %v", err)
		}
	}
	creds := storefront.Credentials{Email: "asha@example.com", Password: "secret"}

	if _, _, err := v.Auth.SignIn(ctx, creds); err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	remaining := v.GuestCart.Items()
	if len(remaining) != 1 || remaining[0].ProductID != "p-2" {
		t.Fatalf("expected only the failed line to stay, got %+v", remaining)
	}
	if len(rec.Meta().Notices) != 1 {
		t.Fatalf("expected the import failure notice, got %+v", rec.Meta().Notices)
	}

	if _, _, err := v.Auth.SignIn(ctx, creds); err != nil {
		t.Fatalf("second sign in: %v", err)
	}
	adds, _ := b.snapshot()
	if adds["p-1"] != 1 || adds["p-2"] != 1 {
		t.Fatalf("expected each guest line imported once, got %v", adds)
	}
	if len(v.GuestCart.Items()) != 0 {
		t.Fatalf("guest cart should be empty after a full import")
	}
}

func TestSignInFailureNotifies(t *testing.T) {
	b := &backend{adds: map[string]int{}, token: "unused"}
	factory, _ := newFactory(t, b)
	rec := prompts.NewRecorder(false)
	ctx := prompts.WithRecorder(context.Background(), rec)

	v, _ := factory.For(ctx, "guest-1")
	if _, _, err := v.Auth.SignIn(ctx, storefront.Credentials{Email: "asha@example.com", Password: "wrong"}); err == nil {
		t.Fatalf("expected login failure")
	}
	notices := rec.Meta().Notices
	if len(notices) != 1 || notices[0].Message != "Invalid email or password" {
		t.Fatalf("expected server message notice, got %+v", notices)
	}
	if userID, _ := v.Auth.UserID(ctx); userID != "" {
		t.Fatalf("no token should be stored")
	}
}

func TestBearerPassthroughWins(t *testing.T) {
	b := &backend{adds: map[string]int{}}
	factory, _ := newFactory(t, b)
	token := signToken(t, "u-9", time.Hour)
	ctx := WithBearer(context.Background(), token)

	v, _ := factory.For(ctx, "guest-1")
	userID, err := v.Auth.UserID(ctx)
	if err != nil || userID != "u-9" {
		t.Fatalf("expected passthrough identity, got %q (%v)", userID, err)
	}
	if _, err := v.Cart.FetchCart(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	_, auths := b.snapshot()
	if got := auths[len(auths)-1]; got != "Bearer "+token {
		t.Fatalf("expected passthrough bearer, got %q", got)
	}

	expired := WithBearer(context.Background(), signToken(t, "u-9", -time.Hour))
	if userID, _ := v.Auth.UserID(expired); userID != "" {
		t.Fatalf("expired passthrough token must be ignored, got %q", userID)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no visitor")
	}
	v := &Visitor{SessionID: "guest-1"}
	if FromContext(WithContext(context.Background(), v)) != v {
		t.Fatalf("expected visitor from context")
	}
}
