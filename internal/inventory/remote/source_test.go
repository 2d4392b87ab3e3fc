package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/inventory"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/cars", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cars": []inventory.Car{{ID: "a", MakerSlug: "toyota"}, {ID: "b", MakerSlug: "honda"}},
		})
	})
	mux.HandleFunc("/v1/cars/a", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(inventory.Car{ID: "a", Model: "プリウス"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSourceAllCars(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	src, err := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "k"}, srv.Client())
	require.NoError(t, err)

	cars, err := src.AllCars(context.Background())
	require.NoError(t, err)
	require.Len(t, cars, 2)
	require.Equal(t, "honda", cars[1].MakerSlug)
}

func TestSourceCarByID(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	src, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "k"}, nil)
	require.NoError(t, err)

	car, err := src.CarByID(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "プリウス", car.Model)

	_, err = src.CarByID(context.Background(), "missing")
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestSourceSurfacesUpstreamErrors(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t)
	src, err := New(Config{BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	_, err = src.AllCars(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, inventory.ErrNotFound)
}

func TestNewValidatesBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "not a url"}, nil)
	require.Error(t, err)
}
