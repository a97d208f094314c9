package wallet

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupHandlerApp(t *testing.T) (*fiber.App, *MemoryStore, func()) {
	t.Helper()

	svc, store, _, _, cleanup := setupService(t)
	handler := NewHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})
	app.Get("/wallet", handler.Balance)
	app.Post("/wallet/credit", handler.Credit)
	app.Post("/wallet/debit", handler.Debit)
	app.Get("/wallet/transactions", handler.Transactions)

	return app, store, cleanup
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, token string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Idempotency-Key", token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, payload
}

func errorCode(t *testing.T, payload map[string]any) string {
	t.Helper()
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestHandlerCreditAndBalance(t *testing.T) {
	app, store, cleanup := setupHandlerApp(t)
	defer cleanup()

	SeedWallet(store, "user-1", dec(t, "10.00"))

	status, payload := doJSON(t, app, http.MethodPost, "/wallet/credit", `{"amount":"25.50","description":"top up"}`, "tok-1")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, payload)
	}
	data := payload["data"].(map[string]any)
	if data["balanceAfter"] != "35.5" {
		t.Fatalf("unexpected balanceAfter: %v", data["balanceAfter"])
	}

	status, payload = doJSON(t, app, http.MethodGet, "/wallet", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, payload)
	}
	snap := payload["data"].(map[string]any)
	if snap["balance"] != "35.5" {
		t.Fatalf("unexpected balance: %v", snap["balance"])
	}
}

func TestHandlerRequiresIdempotencyKey(t *testing.T) {
	app, store, cleanup := setupHandlerApp(t)
	defer cleanup()

	SeedWallet(store, "user-1", dec(t, "10.00"))

	status, payload := doJSON(t, app, http.MethodPost, "/wallet/credit", `{"amount":"5.00"}`, "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if code := errorCode(t, payload); code != "MISSING_IDEMPOTENCY_KEY" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestHandlerInsufficientBalance(t *testing.T) {
	app, store, cleanup := setupHandlerApp(t)
	defer cleanup()

	SeedWallet(store, "user-1", dec(t, "10.00"))

	status, payload := doJSON(t, app, http.MethodPost, "/wallet/debit", `{"amount":"99.00"}`, "tok-1")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %v", status, payload)
	}
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != "INSUFFICIENT_BALANCE" {
		t.Fatalf("unexpected error code %v", errObj["code"])
	}
	if errObj["currentBalance"] != "10" {
		t.Fatalf("unexpected currentBalance %v", errObj["currentBalance"])
	}
}

func TestHandlerValidationAndNotFound(t *testing.T) {
	app, store, cleanup := setupHandlerApp(t)
	defer cleanup()

	// No wallet seeded for user-1 yet.
	status, payload := doJSON(t, app, http.MethodGet, "/wallet", "", "")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if code := errorCode(t, payload); code != "NOT_FOUND" {
		t.Fatalf("unexpected error code %q", code)
	}

	SeedWallet(store, "user-1", dec(t, "10.00"))

	status, payload = doJSON(t, app, http.MethodPost, "/wallet/credit", `{"amount":"-1.00"}`, "tok-1")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if code := errorCode(t, payload); code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestHandlerTransactionsPagination(t *testing.T) {
	app, store, cleanup := setupHandlerApp(t)
	defer cleanup()

	SeedWallet(store, "user-1", dec(t, "100.00"))

	for _, tok := range []string{"a", "b", "c"} {
		status, payload := doJSON(t, app, http.MethodPost, "/wallet/debit", `{"amount":"1.00"}`, tok)
		if status != http.StatusOK {
			t.Fatalf("debit %s: got %d: %v", tok, status, payload)
		}
	}

	status, payload := doJSON(t, app, http.MethodGet, "/wallet/transactions?limit=2", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	entries := payload["data"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	pagination := payload["pagination"].(map[string]any)
	if pagination["count"] != float64(2) || pagination["limit"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pagination)
	}
}
