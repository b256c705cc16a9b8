package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBreedClient_FetchBreeds(t *testing.T) {
	t.Run("Single request", func(t *testing.T) {
		var gotPath, gotAccept, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAccept = r.Header.Get("Accept")
			gotKey = r.Header.Get("x-api-key")
			fmt.Fprint(w, `[{"id":1,"name":"Affenpinscher"},{"id":2,"name":"Afghan Hound","weight":{"metric":"23 - 27"}}]`)
		}))
		defer srv.Close()

		client := NewHTTPBreedClient(srv.URL+"/v1/", "/breeds", "secret", 0, 5*time.Second)
		records, err := client.FetchBreeds(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.JSONEq(t, `{"id":2,"name":"Afghan Hound","weight":{"metric":"23 - 27"}}`, string(records[1]))
		assert.Equal(t, "/v1/breeds", gotPath)
		assert.Equal(t, "application/json", gotAccept)
		assert.Equal(t, "secret", gotKey)
	})

	t.Run("No key header without key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present := r.Header["X-Api-Key"]
			assert.False(t, present)
			fmt.Fprint(w, `[]`)
		}))
		defer srv.Close()

		records, err := NewHTTPBreedClient(srv.URL, "breeds", "", 0, time.Second).FetchBreeds(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Pagination stops on a short page", func(t *testing.T) {
		var pages []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			pages = append(pages, r.URL.Query().Get("page"))
			switch page {
			case 0:
				fmt.Fprint(w, `[{"id":1},{"id":2}]`)
			case 1:
				fmt.Fprint(w, `[{"id":3},{"id":4}]`)
			default:
				fmt.Fprint(w, `[{"id":5}]`)
			}
		}))
		defer srv.Close()

		records, err := NewHTTPBreedClient(srv.URL, "breeds", "", 2, time.Second).FetchBreeds(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 5)
		assert.Equal(t, []string{"0", "1", "2"}, pages)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			_, err := NewHTTPBreedClient(srv.URL, "breeds", "bad", 0, time.Second).FetchBreeds(context.Background())
			srv.Close()
			assert.True(t, errors.Is(err, ErrUnauthorized), "status %d", code)
		}
	})

	t.Run("Server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream down")
		}))
		defer srv.Close()

		_, err := NewHTTPBreedClient(srv.URL, "breeds", "", 0, time.Second).FetchBreeds(context.Background())
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Equal(t, "upstream down", statusErr.Body)
	})

	t.Run("Not an array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"message":"breeds moved"}`)
		}))
		defer srv.Close()

		_, err := NewHTTPBreedClient(srv.URL, "breeds", "", 0, time.Second).FetchBreeds(context.Background())
		assert.ErrorContains(t, err, "JSON array")
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, `[]`)
		}))
		defer srv.Close()

		_, err := NewHTTPBreedClient(srv.URL, "breeds", "", 0, 20*time.Millisecond).FetchBreeds(context.Background())
		assert.ErrorContains(t, err, "failed to call breed catalog")
	})
}
