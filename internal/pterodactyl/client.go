// Package pterodactyl is a minimal client for the panel application
// API, covering the two calls the creation flow needs.
package pterodactyl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// APIError carries the panel's structured error detail for a rejected
// request.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return e.Detail
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UserRequest holds the collected credentials for a new panel account.
// The remaining account fields are fixed: non-admin, English locale.
type UserRequest struct {
	Username string
	Email    string
	Password string
}

// User is the panel account created for the requester.
type User struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ServerRequest describes the server to create, derived from the chosen
// type definition plus the new account.
type ServerRequest struct {
	Name        string
	UserID      int
	EggID       int
	DockerImage string
	Startup     string
	Environment map[string]string
	MemoryMB    int
	LocationID  int
}

// Server is the created panel server.
type Server struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
}

// CreateUser creates a panel account. On a non-2xx response the error
// is an *APIError preferring the panel's detail text.
func (c *Client) CreateUser(ctx context.Context, req UserRequest) (User, error) {
	body := map[string]any{
		"username":   req.Username,
		"email":      req.Email,
		"first_name": req.Username,
		"last_name":  "User",
		"password":   req.Password,
		"root_admin": false,
		"language":   "en",
	}

	var user User
	if err := c.post(ctx, "/api/application/users", body, &user, "Failed to create user"); err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateServer creates a server owned by an existing panel account.
// Resource and feature limits beyond the type's memory allocation are
// fixed at conservative defaults.
func (c *Client) CreateServer(ctx context.Context, req ServerRequest) (Server, error) {
	env := req.Environment
	if env == nil {
		env = map[string]string{}
	}

	body := map[string]any{
		"name":         req.Name,
		"user":         req.UserID,
		"egg":          req.EggID,
		"docker_image": req.DockerImage,
		"startup":      req.Startup,
		"environment":  env,
		"limits": map[string]any{
			"memory": req.MemoryMB,
			"swap":   0,
			"disk":   1024,
			"io":     500,
			"cpu":    100,
		},
		"feature_limits": map[string]any{
			"databases":   0,
			"allocations": 1,
			"backups":     1,
		},
		"allocation": map[string]any{
			"default": nil,
		},
		"deploy": map[string]any{
			"locations":    []int{req.LocationID},
			"dedicated_ip": false,
			"port_range":   []string{},
		},
	}

	var server Server
	if err := c.post(ctx, "/api/application/servers", body, &server, "Failed to create server"); err != nil {
		return Server{}, err
	}
	return server, nil
}

// post sends one request and decodes either the attributes envelope
// into out or the error envelope into an *APIError.
func (c *Client) post(ctx context.Context, path string, body any, out any, fallback string) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(respBody, fallback)}
	}

	var envelope struct {
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Attributes == nil {
		return &APIError{Status: resp.StatusCode, Detail: fallback}
	}
	if err := json.Unmarshal(envelope.Attributes, out); err != nil {
		return &APIError{Status: resp.StatusCode, Detail: fallback}
	}
	return nil
}

// errorDetail extracts the first detail string from the panel's error
// envelope, falling back to a generic message.
func errorDetail(body []byte, fallback string) string {
	var envelope struct {
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil &&
		len(envelope.Errors) > 0 && envelope.Errors[0].Detail != "" {
		return envelope.Errors[0].Detail
	}
	return fallback
}
