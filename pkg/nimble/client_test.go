package nimble

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parse-fields", r.URL.Path)
		assert.Equal(t, "Bearer nk", r.Header.Get("Authorization"))

		var req parseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"pricing", "changelog"}, req.Fields)

		json.NewEncoder(w).Encode(map[string]any{
			"pricing":   "$29/mo",
			"changelog": "v2.1",
		})
	}))
	defer srv.Close()

	c := NewClient("nk", WithBaseURL(srv.URL))
	fields, err := c.ParseFields(context.Background(), "<html></html>", []string{"pricing", "changelog"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pricing": "$29/mo", "changelog": "v2.1"}, fields)
}

func TestParseFields_NonStringAndEmptyValuesIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"pricing":    "$10",
			"score":      0.9,
			"empty":      "",
			"structured": map[string]string{"a": "b"},
		})
	}))
	defer srv.Close()

	c := NewClient("nk", WithBaseURL(srv.URL))
	fields, err := c.ParseFields(context.Background(), "x", []string{"pricing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pricing": "$10"}, fields)
}

func TestParseFields_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("nk", WithBaseURL(srv.URL))
	_, err := c.ParseFields(context.Background(), "x", []string{"pricing"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseFields_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("nk", WithBaseURL(srv.URL))
	_, err := c.ParseFields(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
