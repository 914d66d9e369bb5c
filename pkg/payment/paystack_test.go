package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/transaction/verify/REF-1":
			w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"REF-1","status":"success","amount":500000,"currency":"NGN","customer":{"email":"buyer@enchiridion.test"}}}`))
		case "/transaction/verify/REF-2":
			w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"REF-2","status":"abandoned","amount":500000}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	}))
	defer srv.Close()

	client := NewPaystackClient(srv.URL, "sk_test")
	ctx := context.Background()

	tx, err := client.VerifyTransaction(ctx, "REF-1")
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Succeeded() || tx.Amount != 500000 || tx.Customer.Email != "buyer@enchiridion.test" {
		t.Errorf("unexpected transaction: %+v", tx)
	}

	tx, err = client.VerifyTransaction(ctx, "REF-2")
	if err != nil {
		t.Fatal(err)
	}
	if tx.Succeeded() {
		t.Error("abandoned transaction reported as paid")
	}

	if _, err := client.VerifyTransaction(ctx, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("err = %v, want ErrTransactionNotFound", err)
	}

	bad := NewPaystackClient(srv.URL, "wrong")
	if _, err := bad.VerifyTransaction(ctx, "REF-1"); err == nil || errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("expected auth failure, got %v", err)
	}
}

func TestNewPaystackClientDefaultBase(t *testing.T) {
	if c := NewPaystackClient("", "sk"); c.BaseURL != "https://api.paystack.co" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
}
