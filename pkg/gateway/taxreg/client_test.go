package taxreg

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
)

func TestLookupSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/companies/0101234567" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"tax_code":    "0101234567",
			"name":        "Acme Trading LLC",
			"address":     "12 Market St",
			"status_code": "00",
		})
	}))
	defer server.Close()

	client, err := NewClient(config.TaxRegistryConfig{BaseURL: server.URL}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	company, err := client.Lookup(context.Background(), "0101234567")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if company.Name != "Acme Trading LLC" || company.Address != "12 Market St" {
		t.Fatalf("unexpected company %+v", company)
	}
	if !company.Active() {
		t.Fatal("status 00 should be active")
	}
}

func TestLookupInactiveStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"tax_code":    "0109999999",
			"name":        "Closed Co",
			"status_code": "03",
		})
	}))
	defer server.Close()

	client, err := NewClient(config.TaxRegistryConfig{BaseURL: server.URL}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	company, err := client.Lookup(context.Background(), "0109999999")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if company.Active() {
		t.Fatal("status 03 should not be active")
	}
	if company.StatusCode != "03" {
		t.Fatalf("expected raw status code, got %q", company.StatusCode)
	}
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(config.TaxRegistryConfig{BaseURL: server.URL}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Lookup(context.Background(), "0000000000")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLookupEmptyTaxCode(t *testing.T) {
	client, err := NewClient(config.TaxRegistryConfig{BaseURL: "http://registry.local"}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Lookup(context.Background(), "  ")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(config.TaxRegistryConfig{BaseURL: server.URL}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Lookup(context.Background(), "0101234567")
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
