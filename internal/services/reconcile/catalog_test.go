package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

func catalogServer(t *testing.T, pages map[int]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		body, ok := pages[atoiOrZero(page)]
		if !ok {
			t.Errorf("unexpected page requested: %q", page)
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func atoiOrZero(s string) int {
	n := 0
	fmt.Sscanf(s, "%d", &n)
	return n
}

func TestHTTPCatalogClient_FetchAll_SinglePage(t *testing.T) {
	srv := catalogServer(t, map[int]string{
		0: `{"items":[{"id":1,"title":"Alien","price":8.5,"active":true,"version":2},{"id":2,"title":"Heat","price":9,"active":false,"version":1}],"total":2,"totalPages":1,"page":0,"size":200}`,
	})
	client := NewHTTPCatalogClient(srv.Client(), srv.URL, 200, testLogger())

	got, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Snapshot{
		{MovieID: 1, Title: "Alien", Price: 8.5, Active: true, Version: 2},
		{MovieID: 2, Title: "Heat", Price: 9, Active: false, Version: 1},
	}, got)
}

func TestHTTPCatalogClient_FetchAll_PagesUntilExhaustion(t *testing.T) {
	srv := catalogServer(t, map[int]string{
		0: `{"items":[{"id":1,"title":"A","version":1}],"totalPages":3}`,
		1: `{"items":[{"id":2,"title":"B","version":1}],"totalPages":3}`,
		2: `{"items":[{"id":3,"title":"C","version":1}],"totalPages":3}`,
	})
	client := NewHTTPCatalogClient(srv.Client(), srv.URL, 1, testLogger())

	got, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].MovieID)
	assert.Equal(t, int64(3), got[2].MovieID)
}

func TestHTTPCatalogClient_FetchAll_DuplicatesMergeLastWriterWins(t *testing.T) {
	srv := catalogServer(t, map[int]string{
		0: `{"items":[{"id":1,"title":"First","version":1},{"id":2,"title":"Other","version":1}],"totalPages":2}`,
		1: `{"items":[{"id":1,"title":"Second","version":2}],"totalPages":2}`,
	})
	client := NewHTTPCatalogClient(srv.Client(), srv.URL, 2, testLogger())

	got, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	// First-seen order, last-seen data.
	assert.Equal(t, int64(1), got[0].MovieID)
	assert.Equal(t, "Second", got[0].Title)
	assert.Equal(t, int64(2), got[0].Version)
	assert.Equal(t, int64(2), got[1].MovieID)
}

func TestHTTPCatalogClient_FetchAll_NormalizesMissingFields(t *testing.T) {
	srv := catalogServer(t, map[int]string{
		0: `{"items":[{"id":1,"title":"NoFlags"},{"id":2,"title":"ZeroVersion","version":0},{"id":3,"title":"Negative","version":-4}],"totalPages":1}`,
	})
	client := NewHTTPCatalogClient(srv.Client(), srv.URL, 200, testLogger())

	got, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	for _, snap := range got {
		assert.True(t, snap.Active, "movie %d", snap.MovieID)
		assert.Equal(t, int64(1), snap.Version, "movie %d", snap.MovieID)
	}
}

func TestHTTPCatalogClient_FetchAll_EmptyCatalog(t *testing.T) {
	srv := catalogServer(t, map[int]string{
		0: `{"items":[],"total":0,"totalPages":1}`,
	})
	client := NewHTTPCatalogClient(srv.Client(), srv.URL, 200, testLogger())

	got, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTPCatalogClient_FetchAll_FatalResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "non-JSON content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html>maintenance</html>")
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
			},
		},
		{
			name: "malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"items": [`)
			},
		},
		{
			name: "missing items field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"totalPages":1}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			client := NewHTTPCatalogClient(srv.Client(), srv.URL, 200, testLogger())

			_, err := client.FetchAll(context.Background())
			require.Error(t, err)
			assert.True(t, faults.IsKind(err, faults.KindTransient))
		})
	}
}

func TestHTTPCatalogClient_FetchAll_Unreachable(t *testing.T) {
	client := NewHTTPCatalogClient(&http.Client{}, "http://127.0.0.1:1", 200, testLogger())

	_, err := client.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindTransient))
}

func TestSnippet_Truncates(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	got := snippet(long)
	assert.Len(t, got, maxBodySnippet+3)
	assert.Equal(t, "<empty>", snippet(nil))
	assert.Equal(t, "a b", snippet([]byte("  a \n b ")))
}
