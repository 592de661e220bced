package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradesim/pkg/account"
	"tradesim/pkg/api"
	"tradesim/pkg/market"
	"tradesim/pkg/sim"
	"tradesim/pkg/storage"
)

// newTestServer wires the full stack (pebble store, account facade, lifecycle
// manager, mock feed, HTTP server) on a per-test temp database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.NewStore(t.TempDir() + "/tradesim.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	log := zap.NewNop().Sugar()
	accounts := account.NewFacade(store, log)
	mgr := sim.NewManager(store, accounts, log)
	feed := market.NewFeed([]string{"AAPL", "TSLA"}, time.Second, log)
	watchlists := api.WatchlistStore{Save: store.SaveWatchlist, Load: store.LoadWatchlist}

	server := api.NewServer(mgr, accounts, feed, watchlists, []string{"*"}, log)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return out
}

func register(t *testing.T, ts *httptest.Server, email string) {
	t.Helper()
	resp, _ := postJSON(t, ts.URL+"/register", map[string]string{
		"email":    email,
		"password": "hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
}

func placeLimitOrder(t *testing.T, ts *httptest.Server, email, side, symbol string) string {
	t.Helper()
	resp, body := postJSON(t, ts.URL+"/placeOrder", map[string]any{
		"email":  email,
		"side":   side,
		"symbol": symbol,
		"kind":   "limit",
		"qty":    10,
		"price":  15000,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("placeOrder: status %d body %v", resp.StatusCode, body)
	}
	order := body["order"].(map[string]any)
	return order["id"].(string)
}

func TestOrderTrashLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")
	id := placeLimitOrder(t, ts, "alice@example.com", "buy", "AAPL")

	// Move to trash.
	resp, body := postJSON(t, ts.URL+"/removeOrder", map[string]string{
		"orderId": id, "email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("removeOrder: status %d body %v", resp.StatusCode, body)
	}
	if body["trashCount"].(float64) != 1 {
		t.Errorf("trashCount = %v, want 1", body["trashCount"])
	}
	if body["orderId"] != id {
		t.Errorf("orderId = %v, want %s", body["orderId"], id)
	}

	// Trash contents carry the originating side.
	resp, body = getJSON(t, ts.URL+"/getTrash?email=alice@example.com")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("getTrash: status %d", resp.StatusCode)
	}
	trash := body["trash"].([]any)
	if len(trash) != 1 {
		t.Fatalf("trash len = %d, want 1", len(trash))
	}
	if trash[0].(map[string]any)["originatingSide"] != "buyOrders" {
		t.Errorf("originatingSide = %v, want buyOrders", trash[0].(map[string]any)["originatingSide"])
	}

	// Restore: back to buy side, tag cleared.
	resp, body = postJSON(t, ts.URL+"/restoreFromTrash", map[string]string{
		"orderId": id, "email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restoreFromTrash: status %d body %v", resp.StatusCode, body)
	}
	if body["trashCount"].(float64) != 0 {
		t.Errorf("trashCount = %v, want 0", body["trashCount"])
	}

	_, body = getJSON(t, ts.URL+"/getOrders?email=alice@example.com")
	buys := body["buyOrders"].([]any)
	if len(buys) != 1 {
		t.Fatalf("buyOrders len = %d, want 1", len(buys))
	}
	if _, tagged := buys[0].(map[string]any)["originatingSide"]; tagged {
		t.Error("restored order still carries originatingSide")
	}

	// Trash again, then delete permanently.
	postJSON(t, ts.URL+"/removeOrder", map[string]string{"orderId": id, "email": "alice@example.com"})
	resp, _ = postJSON(t, ts.URL+"/deleteFromTrash", map[string]string{
		"orderId": id, "email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deleteFromTrash: status %d", resp.StatusCode)
	}

	// Gone for good.
	resp, _ = postJSON(t, ts.URL+"/restoreFromTrash", map[string]string{
		"orderId": id, "email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("restore after purge: status %d, want 404", resp.StatusCode)
	}
}

func TestLifecycleStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")

	// Missing fields → 400
	resp, _ := postJSON(t, ts.URL+"/removeOrder", map[string]string{"email": "alice@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing orderId: status %d, want 400", resp.StatusCode)
	}
	resp, _ = postJSON(t, ts.URL+"/removeOrder", map[string]string{"orderId": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing email: status %d, want 400", resp.StatusCode)
	}

	// Unknown user → 404
	resp, _ = postJSON(t, ts.URL+"/removeOrder", map[string]string{
		"orderId": "x", "email": "ghost@example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user: status %d, want 404", resp.StatusCode)
	}

	// Known user, unknown order → 404
	resp, _ = postJSON(t, ts.URL+"/removeOrder", map[string]string{
		"orderId": "x", "email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown order: status %d, want 404", resp.StatusCode)
	}

	// Double remove: success then 404.
	id := placeLimitOrder(t, ts, "alice@example.com", "sell", "TSLA")
	resp, _ = postJSON(t, ts.URL+"/removeOrder", map[string]string{"orderId": id, "email": "alice@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first remove: status %d", resp.StatusCode)
	}
	resp, _ = postJSON(t, ts.URL+"/removeOrder", map[string]string{"orderId": id, "email": "alice@example.com"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second remove: status %d, want 404", resp.StatusCode)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")
	register(t, ts, "bob@example.com")

	// Pending limit orders on both users, one in alice's trash.
	placeLimitOrder(t, ts, "alice@example.com", "buy", "AAPL")
	trashed := placeLimitOrder(t, ts, "alice@example.com", "buy", "AAPL")
	placeLimitOrder(t, ts, "bob@example.com", "sell", "TSLA")
	postJSON(t, ts.URL+"/removeOrder", map[string]string{
		"orderId": trashed, "email": "alice@example.com",
	})

	// A completed market order must survive the purge.
	resp, body := postJSON(t, ts.URL+"/placeOrder", map[string]any{
		"email": "bob@example.com", "side": "buy", "symbol": "AAPL", "kind": "market", "qty": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("market order: status %d body %v", resp.StatusCode, body)
	}

	// Manual trigger and scheduled trigger share this endpoint; both verbs work.
	for _, method := range []string{"POST", "GET"} {
		req, _ := http.NewRequest(method, ts.URL+"/cleanupLimitOrders", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s cleanup failed: %v", method, err)
		}
		body := decodeBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s cleanup: status %d body %v", method, resp.StatusCode, body)
		}
		if method == "POST" {
			if body["removedCount"].(float64) != 2 {
				t.Errorf("removedCount = %v, want 2", body["removedCount"])
			}
			if body["timestamp"] == "" {
				t.Error("cleanup response missing timestamp")
			}
		} else if body["removedCount"].(float64) != 0 {
			// Second pass finds nothing left.
			t.Errorf("second cleanup removedCount = %v, want 0", body["removedCount"])
		}
	}

	// Trash untouched, market order survived.
	_, body = getJSON(t, ts.URL+"/getTrash?email=alice@example.com")
	if body["trashCount"].(float64) != 1 {
		t.Errorf("trashCount = %v, want 1 (cleanup must never touch trash)", body["trashCount"])
	}
	_, body = getJSON(t, ts.URL+"/getOrders?email=bob@example.com")
	if n := len(body["buyOrders"].([]any)); n != 1 {
		t.Errorf("bob buyOrders len = %d, want 1 (completed market order kept)", n)
	}
	if n := len(body["sellOrders"].([]any)); n != 0 {
		t.Errorf("bob sellOrders len = %d, want 0", n)
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")

	resp, body := postJSON(t, ts.URL+"/watchlist/add", map[string]string{
		"email": "alice@example.com", "symbol": "AAPL",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watchlist add: status %d body %v", resp.StatusCode, body)
	}
	// Adding twice is a no-op.
	postJSON(t, ts.URL+"/watchlist/add", map[string]string{"email": "alice@example.com", "symbol": "AAPL"})
	postJSON(t, ts.URL+"/watchlist/add", map[string]string{"email": "alice@example.com", "symbol": "TSLA"})

	_, body = getJSON(t, ts.URL+"/watchlist?email=alice@example.com")
	list := body["watchlist"].([]any)
	if len(list) != 2 || list[0] != "AAPL" || list[1] != "TSLA" {
		t.Fatalf("watchlist = %v, want [AAPL TSLA]", list)
	}

	postJSON(t, ts.URL+"/watchlist/remove", map[string]string{"email": "alice@example.com", "symbol": "AAPL"})
	_, body = getJSON(t, ts.URL+"/watchlist?email=alice@example.com")
	list = body["watchlist"].([]any)
	if len(list) != 1 || list[0] != "TSLA" {
		t.Errorf("watchlist after remove = %v, want [TSLA]", list)
	}

	resp, _ = getJSON(t, ts.URL+"/watchlist?email=ghost@example.com")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user watchlist: status %d, want 404", resp.StatusCode)
	}
}

func TestQuoteAndMarketOrderFill(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")

	resp, body := getJSON(t, ts.URL+"/quote?symbol=AAPL")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote: status %d", resp.StatusCode)
	}
	quote := body["price"].(float64)
	if quote <= 0 {
		t.Fatalf("quote price = %v, want > 0", quote)
	}

	resp, body = postJSON(t, ts.URL+"/placeOrder", map[string]any{
		"email": "alice@example.com", "side": "buy", "symbol": "AAPL", "kind": "market", "qty": 3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("market order: status %d body %v", resp.StatusCode, body)
	}
	order := body["order"].(map[string]any)
	if order["status"] != "completed" {
		t.Errorf("market order status = %v, want completed", order["status"])
	}
	if order["price"].(float64) != quote {
		t.Errorf("fill price = %v, want quote %v", order["price"], quote)
	}

	resp, _ = getJSON(t, ts.URL+"/quote?symbol=DOGE")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown symbol quote: status %d, want 404", resp.StatusCode)
	}
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice@example.com")

	resp, _ := postJSON(t, ts.URL+"/login", map[string]string{
		"email": "alice@example.com", "password": "hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login: status %d, want 200", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/login", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/register", map[string]string{
		"email": "alice@example.com", "password": "again",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: status %d body %v", resp.StatusCode, body)
	}
}

func TestManyUsersSurviveCleanupIndependently(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		register(t, ts, email)
		placeLimitOrder(t, ts, email, "buy", "AAPL")
	}

	resp, body := postJSON(t, ts.URL+"/cleanupLimitOrders", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup: status %d", resp.StatusCode)
	}
	if body["removedCount"].(float64) != 5 {
		t.Errorf("removedCount = %v, want 5", body["removedCount"])
	}
}
