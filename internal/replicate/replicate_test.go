package replicate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dt-pm-tools/jira-bridge/internal/adf"
	"github.com/dt-pm-tools/jira-bridge/internal/jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCopyExtras(t *testing.T) {
	commentDoc := `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"original comment"}]}]}`

	var sourceSrv *httptest.Server
	sourceSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/comment"):
			w.Write([]byte(`{"comments":[
				{"author":{"displayName":"Ana Torres"},"body":` + commentDoc + `},
				{"author":{"displayName":"Empty"},"body":null}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/att-file"):
			w.Write([]byte("file-bytes"))
		default:
			// issue GET with attachment projection
			w.Write([]byte(`{"id":"12345","fields":{"summary":"s","attachment":[
				{"id":"a1","filename":"log.txt","content":"` + sourceSrv.URL + `/att-file"}
			]}}`))
		}
	}))
	defer sourceSrv.Close()

	var mu sync.Mutex
	var postedComments []string
	var uploadedFiles []string
	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/comment"):
			body, _ := io.ReadAll(r.Body)
			postedComments = append(postedComments, string(body))
		case strings.HasSuffix(r.URL.Path, "/attachments"):
			require.Equal(t, "no-check", r.Header.Get("X-Atlassian-Token"))
			require.NoError(t, r.ParseMultipartForm(1 << 20))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)
			uploadedFiles = append(uploadedFiles, header.Filename+":"+string(data))
		default:
			t.Errorf("unexpected target call %s", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer targetSrv.Close()

	r := New(
		jira.NewClient(sourceSrv.URL, "src@example.com", "t1"),
		jira.NewClient(targetSrv.URL, "dst@example.com", "t2"),
		discardLogger(),
	)
	r.CopyExtras(context.Background(), "12345", "9001")

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, postedComments, 1, "empty-body comment must be filtered")
	var payload struct {
		Body adf.Node `json:"body"`
	}
	require.NoError(t, json.Unmarshal([]byte(postedComments[0]), &payload))
	require.GreaterOrEqual(t, len(payload.Body.Content), 2)
	assert.Equal(t, "[Migrated from source Jira - Ana Torres]",
		payload.Body.Content[0].Content[0].Text, "provenance paragraph must come first")
	assert.Equal(t, "original comment", payload.Body.Content[1].Content[0].Text)

	require.Len(t, uploadedFiles, 1)
	assert.Equal(t, "log.txt:file-bytes", uploadedFiles[0])
}

func TestCopyExtrasFailuresAreIsolated(t *testing.T) {
	sourceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comment") {
			w.Write([]byte(`{"comments":[
				{"author":{"displayName":"A"},"body":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"one"}]}]}},
				{"author":{"displayName":"B"},"body":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"two"}]}]}}
			]}`))
			return
		}
		// Attachment listing fails outright.
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer sourceSrv.Close()

	var mu sync.Mutex
	posted := 0
	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posted++
		n := posted
		mu.Unlock()
		if n == 1 {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer targetSrv.Close()

	r := New(
		jira.NewClient(sourceSrv.URL, "src@example.com", "t1"),
		jira.NewClient(targetSrv.URL, "dst@example.com", "t2"),
		discardLogger(),
	)

	// Must return normally: one comment rejected, attachments listing
	// failed, the sibling comment still posts.
	r.CopyExtras(context.Background(), "12345", "9001")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, posted, "both comments attempted despite first failing")
}
