package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dt-pm-tools/jira-bridge/internal/jira"
	"github.com/dt-pm-tools/jira-bridge/internal/replicate"
	"github.com/dt-pm-tools/jira-bridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quietSource serves empty comments and attachments so extras replication
// has nothing to copy.
func quietSource(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comment") {
			w.Write([]byte(`{"comments":[]}`))
			return
		}
		w.Write([]byte(`{"id":"0","fields":{"summary":""}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, sourceURL, targetURL string) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	source := jira.NewClient(sourceURL, "src@example.com", "t1")
	target := jira.NewClient(targetURL, "dst@example.com", "t2")
	log := discardLogger()
	return New(source, target, st, replicate.New(source, target, log), log), st
}

func seedRelation(t *testing.T, st *store.Store, sourceID, sourceKey, targetID, targetKey string) {
	t.Helper()
	require.NoError(t, st.Insert(context.Background(), store.Relation{
		SourceSystem:   SourceSystem,
		SourceIssueID:  sourceID,
		SourceIssueKey: sourceKey,
		TargetSystem:   TargetSystem,
		TargetIssueID:  targetID,
		TargetIssueKey: targetKey,
	}))
}

func sourceTicket(id, key, service string) jira.SourceTicket {
	return jira.SourceTicket{
		ID:  id,
		Key: key,
		Fields: jira.SourceFields{
			Summary: "incident " + id,
			Status:  &jira.Status{Name: "Open"},
			Service: service,
		},
	}
}

func TestClassifyPartition(t *testing.T) {
	p, st := newTestPipeline(t, "http://unused.invalid", "http://unused.invalid")
	ctx := context.Background()
	seedRelation(t, st, "2", "INC-2", "9002", "SPT-2")

	got, err := p.Classify(ctx, []string{"1", "2", "3", "2", "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, got.NewIDs)
	assert.Equal(t, []string{"2"}, got.OldIDs)

	// Idempotent absent concurrent writers.
	again, err := p.Classify(ctx, []string{"1", "2", "3", "2", "1"})
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestCreateFlow(t *testing.T) {
	sourceSrv := quietSource(t)

	var mu sync.Mutex
	creates := 0
	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comment") || strings.HasSuffix(r.URL.Path, "/attachments") {
			w.Write([]byte(`{}`))
			return
		}
		mu.Lock()
		creates++
		n := creates
		mu.Unlock()
		if n == 1 {
			json.NewEncoder(w).Encode(jira.Created{ID: "9001", Key: "SPT-1"})
		} else {
			json.NewEncoder(w).Encode(jira.Created{ID: "9002", Key: "SPT-2"})
		}
	}))
	defer targetSrv.Close()

	p, st := newTestPipeline(t, sourceSrv.URL, targetSrv.URL)
	ctx := context.Background()

	tickets := []jira.SourceTicket{
		sourceTicket("12345", "INC-1", "SOAINT"),
		sourceTicket("12346", "INC-2", "unknown-system"), // mapping fails
		sourceTicket("12347", "INC-3", "SOAINT"),
	}

	result, err := p.Create(ctx, tickets)
	require.NoError(t, err, "partial failure must not raise")

	require.Len(t, result.Created, 2)
	assert.Equal(t, CreatedTicket{ID: "9001", Key: "SPT-1", SourceID: "12345", SourceKey: "INC-1"}, result.Created[0])
	assert.Equal(t, "12347", result.Created[1].SourceID, "sibling after a failed ticket is still processed")

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "12346", result.Failed[0].SourceID)
	assert.Contains(t, result.Failed[0].Reason, "unknown-system")

	// Relation rows persisted for created pairs only.
	existing, err := st.ExistingSourceIDs(ctx, SourceSystem, []string{"12345", "12346", "12347"})
	require.NoError(t, err)
	assert.True(t, existing["12345"])
	assert.True(t, existing["12347"])
	assert.False(t, existing["12346"])

	targets, err := st.TargetIDs(ctx, SourceSystem, []string{"12345"})
	require.NoError(t, err)
	assert.Equal(t, "9001", targets["12345"])
}

func TestCreateFlowIsolatesWriteFailures(t *testing.T) {
	sourceSrv := quietSource(t)

	var mu sync.Mutex
	creates := 0
	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comment") || strings.HasSuffix(r.URL.Path, "/attachments") {
			w.Write([]byte(`{}`))
			return
		}
		mu.Lock()
		creates++
		n := creates
		mu.Unlock()
		if n == 1 {
			http.Error(w, `{"errors":{"summary":"too long"}}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(jira.Created{ID: "9002", Key: "SPT-2"})
	}))
	defer targetSrv.Close()

	p, st := newTestPipeline(t, sourceSrv.URL, targetSrv.URL)
	ctx := context.Background()

	result, err := p.Create(ctx, []jira.SourceTicket{
		sourceTicket("1", "INC-1", "SOAINT"),
		sourceTicket("2", "INC-2", "SOAINT"),
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "2", result.Created[0].SourceID)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Reason, "too long")

	existing, err := st.ExistingSourceIDs(ctx, SourceSystem, []string{"1", "2"})
	require.NoError(t, err)
	assert.False(t, existing["1"], "failed create must not persist a relation")
	assert.True(t, existing["2"])
}

func TestUpdateSkipsUnknownIDs(t *testing.T) {
	networkCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		networkCalls++
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL, srv.URL)

	result, err := p.Update(context.Background(), []string{"555"})
	require.NoError(t, err)
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Failed)
	assert.Zero(t, networkCalls, "no network call for ids without a relation row")
}

func TestUpdateFlow(t *testing.T) {
	sourceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issues": []jira.SourceTicket{sourceTicket("12345", "INC-1", "SOAINT")},
			"isLast": true,
		})
	}))
	defer sourceSrv.Close()

	var puts []string
	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		puts = append(puts, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer targetSrv.Close()

	p, st := newTestPipeline(t, sourceSrv.URL, targetSrv.URL)
	seedRelation(t, st, "12345", "INC-1", "9001", "SPT-1")

	result, err := p.Update(context.Background(), []string{"12345"})
	require.NoError(t, err)

	require.Len(t, puts, 1)
	assert.Equal(t, "/rest/api/3/issue/9001", puts[0])
	require.Len(t, result.Updated, 1)
	assert.Equal(t, "9001", result.Updated[0].ID)
	assert.Empty(t, result.Failed)
}

func TestManage(t *testing.T) {
	var mu sync.Mutex
	searchCalls := 0
	sourceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comment") {
			w.Write([]byte(`{"comments":[]}`))
			return
		}
		if strings.Contains(r.URL.Path, "/search/") {
			mu.Lock()
			searchCalls++
			n := searchCalls
			mu.Unlock()
			var tickets []jira.SourceTicket
			if n == 1 {
				// Discovery: ids only.
				tickets = []jira.SourceTicket{{ID: "100"}, {ID: "200"}}
			} else {
				// Bulk fetch: served per requested chunk.
				body, _ := io.ReadAll(r.Body)
				if strings.Contains(string(body), "IN (100)") {
					tickets = []jira.SourceTicket{sourceTicket("100", "INC-100", "SOAINT")}
				} else {
					tickets = []jira.SourceTicket{sourceTicket("200", "INC-200", "SOAINT")}
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"issues": tickets, "isLast": true})
			return
		}
		// Issue GET for attachment metadata.
		w.Write([]byte(`{"id":"100","fields":{"summary":""}}`))
	}))
	defer sourceSrv.Close()

	targetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/comment"), strings.HasSuffix(r.URL.Path, "/attachments"):
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		default:
			json.NewEncoder(w).Encode(jira.Created{ID: "9100", Key: "SPT-100"})
		}
	}))
	defer targetSrv.Close()

	p, st := newTestPipeline(t, sourceSrv.URL, targetSrv.URL)
	seedRelation(t, st, "200", "INC-200", "9200", "SPT-200")

	result, err := p.Manage(context.Background(), "2026-01-01")
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "100", result.Created[0].SourceID)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, "9200", result.Updated[0].ID)
	assert.Empty(t, result.Failed)
}
