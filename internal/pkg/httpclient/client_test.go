package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"echo":"` + body["orderId"] + `"}`))
	}))
	defer srv.Close()

	c := New().WithTimeout(2*time.Second).WithHeader("X-Test", "yes")
	resp, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"orderId": "PM7K2Q9XZA"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"PM7K2Q9XZA"}`, string(resp))
}

func TestPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, _ = w.Write([]byte(r.PostForm.Get("apptransid")))
	}))
	defer srv.Close()

	resp, err := New().PostForm(context.Background(), srv.URL, map[string]string{"apptransid": "240131_PM7K2Q9XZA"})
	require.NoError(t, err)
	assert.Equal(t, "240131_PM7K2Q9XZA", string(resp))
}

func TestNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New().PostJSON(context.Background(), srv.URL, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New().PostJSON(ctx, srv.URL, map[string]string{})
	assert.Error(t, err)
}
