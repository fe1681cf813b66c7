package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my-lecture-notes", SanitizeFileName("  My Lecture   Notes "))
	assert.Equal(t, "report_q3", SanitizeFileName("Report_Q3!!"))
	assert.Equal(t, "a-b", SanitizeFileName("a -- b"))
	assert.Equal(t, "unnamed-file", SanitizeFileName("###"))
}

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("Team Sync (Jan).MP4", 1024)
	require.NoError(t, err)
	assert.Equal(t, "team-sync-jan.mp4", key)

	_, err = ObjectKey("tool.exe", 10)
	assert.ErrorIs(t, err, ErrFileType)

	_, err = ObjectKey("big.mov", MaxUploadSize+1)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/quicktime", ContentType("x.MOV", ""))
	assert.Equal(t, "application/pdf", ContentType("x.pdf", "text/plain"))
	assert.Equal(t, "audio/amr", ContentType("x.amr", "audio/amr"))
	assert.Equal(t, "application/octet-stream", ContentType("x.amr", ""))
}

func TestUploadsPresign(t *testing.T) {
	store := newFakeStore()
	u := NewUploads(store, 0)
	ticket, err := u.Presign(context.Background(), "Deck.pptx", 100, "")
	require.NoError(t, err)
	assert.Equal(t, "deck.pptx", ticket.Key)
	assert.Equal(t, "https://blob.test/deck.pptx?put=1", ticket.URL)
	assert.Contains(t, ticket.ContentType, "presentationml")
	// the signed type and the type the client is told to send agree
	assert.Equal(t, ticket.ContentType, store.putType)
}

func TestUpload_ReportsProgress(t *testing.T) {
	var got []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body := bytes.Repeat([]byte("x"), 100_000)
	var last, total int64
	calls := 0
	err := Upload(context.Background(), srv.Client(), srv.URL+"/obj", bytes.NewReader(body), int64(len(body)), "video/mp4",
		func(sent, tot int64) {
			assert.GreaterOrEqual(t, sent, last)
			last, total = sent, tot
			calls++
		})
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, int64(len(body)), last)
	assert.Equal(t, int64(len(body)), total)
	assert.Positive(t, calls)
}

func TestUpload_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := Upload(context.Background(), srv.Client(), srv.URL, bytes.NewReader([]byte("a")), 1, "text/plain", nil)
	assert.ErrorIs(t, err, ErrUpload)
}
