package pterodactyl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateUserSendsFixedDefaults(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/application/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"object":"user","attributes":{"id":7,"uuid":"u-u-i-d","username":"tester","email":"t@example.com"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	user, err := c.CreateUser(context.Background(), UserRequest{
		Username: "tester",
		Email:    "t@example.com",
		Password: "Pass-123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 7 {
		t.Fatalf("user.ID = %d, want 7", user.ID)
	}

	if got["root_admin"] != false {
		t.Errorf("root_admin = %v, want false", got["root_admin"])
	}
	if got["language"] != "en" {
		t.Errorf("language = %v, want en", got["language"])
	}
	if got["first_name"] != "tester" || got["last_name"] != "User" {
		t.Errorf("name fields = %v / %v", got["first_name"], got["last_name"])
	}
}

func TestCreateServerBuildsLimits(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/application/servers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"object":"server","attributes":{"id":3,"identifier":"abc123ef","uuid":"s-u-i-d","name":"tester's Minecraft Server"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	server, err := c.CreateServer(context.Background(), ServerRequest{
		Name:        "tester's Minecraft Server",
		UserID:      7,
		EggID:       5,
		DockerImage: "ghcr.io/pterodactyl/yolks:java_17",
		MemoryMB:    1024,
		LocationID:  1,
	})
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	if server.Identifier != "abc123ef" {
		t.Fatalf("identifier = %q", server.Identifier)
	}

	limits := got["limits"].(map[string]any)
	if limits["memory"] != float64(1024) || limits["swap"] != float64(0) ||
		limits["disk"] != float64(1024) || limits["io"] != float64(500) || limits["cpu"] != float64(100) {
		t.Errorf("unexpected limits: %#v", limits)
	}
	features := got["feature_limits"].(map[string]any)
	if features["databases"] != float64(0) || features["allocations"] != float64(1) || features["backups"] != float64(1) {
		t.Errorf("unexpected feature limits: %#v", features)
	}
	deploy := got["deploy"].(map[string]any)
	locs := deploy["locations"].([]any)
	if len(locs) != 1 || locs[0] != float64(1) {
		t.Errorf("unexpected deploy locations: %#v", locs)
	}
	// An absent per-type environment must still serialize as an object.
	if _, ok := got["environment"].(map[string]any); !ok {
		t.Errorf("environment not an object: %#v", got["environment"])
	}
}

func TestErrorEnvelopeDetailPreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"code":"ValidationException","detail":"The email field must be unique."}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.CreateUser(context.Background(), UserRequest{Username: "x", Email: "x@y.zz", Password: "Pass-123"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Detail != "The email field must be unique." {
		t.Fatalf("detail = %q", apiErr.Detail)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", apiErr.Status)
	}
}

func TestErrorFallbackOnGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>nope</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.CreateServer(context.Background(), ServerRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Detail != "Failed to create server" {
		t.Fatalf("detail = %q", apiErr.Detail)
	}
}

func TestMalformedSuccessBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"object":"user"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.CreateUser(context.Background(), UserRequest{Username: "x", Email: "x@y.zz", Password: "Pass-123"})
	if err == nil {
		t.Fatalf("expected error for missing attributes")
	}
}
