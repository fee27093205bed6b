package paperless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrove/enrich-cli/internal/resilience"
)

func TestGetDocument_Success(t *testing.T) {
	t.Parallel()

	corr := 7
	want := Document{
		ID:               42,
		Title:            "scan_0042",
		Content:          "Rechnung Nr. 2024-118",
		OriginalFileName: "scan_0042.pdf",
		Tags:             []int{1, 3},
		Correspondent:    &corr,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/documents/42/", r.URL.Path)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	got, err := client.GetDocument(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Tags, got.Tags)
	require.NotNil(t, got.Correspondent)
	assert.Equal(t, 7, *got.Correspondent)
}

func TestGetDocument_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	_, err := client.GetDocument(context.Background(), 999)

	require.Error(t, err)
	var nf *resilience.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.False(t, resilience.IsRetryable(err))
}

func TestGetDocument_AuthError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid token."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-token")
	_, err := client.GetDocument(context.Background(), 1)

	require.Error(t, err)
	var ae *resilience.AuthError
	assert.True(t, errors.As(err, &ae))
	assert.True(t, resilience.IsRunFatal(err))
}

func TestGetDocument_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	_, err := client.GetDocument(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	assert.True(t, resilience.IsRetryable(err))
}

func TestUpdateDocument_PatchesOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	title := "Invoice 2024-118 from Stadtwerke"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/documents/42/", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, title, body["title"])
		assert.Equal(t, []any{float64(1), float64(5)}, body["tags"])
		assert.NotContains(t, body, "correspondent")
		assert.NotContains(t, body, "document_type")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Document{ID: 42, Title: title, Tags: []int{1, 5}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	got, err := client.UpdateDocument(context.Background(), 42, DocumentUpdate{
		Title: &title,
		Tags:  []int{1, 5},
	})

	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
}

func TestUpdateDocument_EmptyUpdateSkipsPatch(t *testing.T) {
	t.Parallel()

	var patched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patched = true
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Document{ID: 42, Title: "untouched"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	got, err := client.UpdateDocument(context.Background(), 42, DocumentUpdate{})

	require.NoError(t, err)
	assert.False(t, patched)
	assert.Equal(t, "untouched", got.Title)
}

func TestListTags_FollowsPagination(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags/", r.URL.Path)
		page := r.URL.Query().Get("page")

		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `{"count":3,"next":"http://x/api/tags/?page=2","results":[{"id":1,"name":"invoice"},{"id":2,"name":"tax"}]}`)
		case "2":
			fmt.Fprint(w, `{"count":3,"next":"","results":[{"id":3,"name":"insurance"}]}`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", WithPageSize(2))
	tags, err := client.ListTags(context.Background())

	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "invoice", tags[0].Name)
	assert.Equal(t, "insurance", tags[2].Name)
}

func TestCreateTag_SendsColor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tags/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "enriched", body["name"])
		assert.Equal(t, "#2ecc71", body["color"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Tag{ID: 9, Name: "enriched", Color: "#2ecc71"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	tag, err := client.CreateTag(context.Background(), "enriched", "#2ecc71")

	require.NoError(t, err)
	assert.Equal(t, 9, tag.ID)
}

func TestCreateCorrespondent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/correspondents/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Stadtwerke München", body["name"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Correspondent{ID: 4, Name: "Stadtwerke München"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	corr, err := client.CreateCorrespondent(context.Background(), "Stadtwerke München")

	require.NoError(t, err)
	assert.Equal(t, 4, corr.ID)
}
