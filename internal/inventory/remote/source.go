// Package remote reads inventory from an upstream JSON API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/carsearch/internal/inventory"
)

// Config describes the upstream API.
type Config struct {
	// BaseURL is the API root; cars are read from BaseURL/cars.
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// Source fetches cars over HTTP.
type Source struct {
	base   *url.URL
	apiKey string
	client *http.Client
}

type listResponse struct {
	Cars []inventory.Car `json:"cars"`
}

// New validates cfg and builds a Source. A nil client gets a default one
// bounded by cfg.Timeout.
func New(cfg Config, client *http.Client) (*Source, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("remote inventory base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote inventory base url %q", cfg.BaseURL)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Source{base: base, apiKey: cfg.APIKey, client: client}, nil
}

// AllCars downloads the full inventory.
func (s *Source) AllCars(ctx context.Context) ([]inventory.Car, error) {
	var body listResponse
	if err := s.get(ctx, "cars", &body); err != nil {
		return nil, err
	}
	return body.Cars, nil
}

// CarByID fetches one car. A 404 maps to inventory.ErrNotFound.
func (s *Source) CarByID(ctx context.Context, id string) (inventory.Car, error) {
	var car inventory.Car
	if err := s.get(ctx, "cars/"+url.PathEscape(id), &car); err != nil {
		return inventory.Car{}, err
	}
	return car, nil
}

func (s *Source) get(ctx context.Context, path string, out any) error {
	endpoint := s.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint.Path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return inventory.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("get %s: unexpected status %d", endpoint.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint.Path, err)
	}
	return nil
}
