package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchNoCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	d := New(nil)
	body, err := d.Fetch(context.Background(), srv.URL, NoCache)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), body)
}

func TestFetchNotFoundReturnsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	d := New(nil)
	_, err := d.Fetch(context.Background(), srv.URL, NoCache)
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestOnlyCacheWithoutStoreFails(t *testing.T) {
	d := New(nil)
	_, err := d.Fetch(context.Background(), "http://example.invalid/x", OnlyCache)
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
}
