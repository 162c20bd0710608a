// Package client consumes a laura-flow feed server: snapshot reads and
// document writes over HTTP, and live change-set watches over WebSocket
// surfaced as streams.
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnohosten/laura-flow/pkg/connstring"
	"github.com/mnohosten/laura-flow/pkg/feed"
)

// Client represents a connection to a feed server
type Client struct {
	cs         *connstring.ConnString
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client from a connection string, e.g.
// lauraflow://localhost:4321/devices?compression=snappy
func New(connStr string) (*Client, error) {
	cs, err := connstring.Parse(connStr)
	if err != nil {
		return nil, err
	}
	return NewFromConnString(cs)
}

// NewFromConnString creates a client from a parsed connection string
func NewFromConnString(cs *connstring.ConnString) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:    10,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}
	if cs.Options.TLS && cs.Options.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	protocol := "http"
	if cs.Options.TLS {
		protocol = "https"
	}

	c := &Client{
		cs:      cs,
		baseURL: fmt.Sprintf("%s://%s", protocol, cs.Address()),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		token: cs.Options.Token,
	}

	// Exchange credentials for a token when one was not given directly
	if c.token == "" && cs.Options.Username != "" {
		token, err := c.login(cs.Options.Username, cs.Options.Password)
		if err != nil {
			return nil, err
		}
		c.token = token
		cs.Options.Token = token
	}

	return c, nil
}

// Feed returns the feed name the client is bound to
func (c *Client) Feed() string {
	return c.cs.Feed
}

// login exchanges credentials for a session token
func (c *Client) login(username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	return loginResp.Token, nil
}

// do performs an authenticated request and decodes the standard envelope
func (c *Client) do(method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		OK      bool            `json:"ok"`
		Result  json.RawMessage `json:"result"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, payload)
	}
	if !envelope.OK {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, envelope.Message)
	}
	if result != nil {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}

// Count reads the item count of the bound feed
func (c *Client) Count() (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.do(http.MethodGet, "/feeds/"+c.cs.Feed+"/_count", nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Items reads the materialized items of the bound feed
func (c *Client) Items() ([]feed.Item, error) {
	var items []feed.Item
	if err := c.do(http.MethodGet, "/feeds/"+c.cs.Feed+"/_items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Lookup reads one item of the bound feed by key
func (c *Client) Lookup(key string) (feed.Item, error) {
	var item feed.Item
	if err := c.do(http.MethodGet, "/feeds/"+c.cs.Feed+"/_items/"+key, nil, &item); err != nil {
		return feed.Item{}, err
	}
	return item, nil
}

// Upsert writes a document into the bound feed
func (c *Client) Upsert(key string, value map[string]interface{}) error {
	return c.do(http.MethodPut, "/feeds/"+c.cs.Feed+"/_items/"+key, value, nil)
}

// Delete removes a document from the bound feed
func (c *Client) Delete(key string) error {
	return c.do(http.MethodDelete, "/feeds/"+c.cs.Feed+"/_items/"+key, nil, nil)
}
