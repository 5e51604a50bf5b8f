package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyNames(t *testing.T, m *Metrics) []string {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestSetupRecordsOperations(t *testing.T) {
	m, err := Setup("hugo-test")
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.RecordOperation(ctx, "get", ResultOK, 3*time.Millisecond)
	m.RecordEviction(ctx, "lazy", 2)
	m.RecordImportRow(ctx, false)

	names := familyNames(t, m)
	assert.True(t, hasPrefix(names, "hugo_operations"), "families: %v", names)
	assert.True(t, hasPrefix(names, "hugo_operation_duration_seconds"), "families: %v", names)
	assert.True(t, hasPrefix(names, "hugo_evictions"), "families: %v", names)
	assert.True(t, hasPrefix(names, "hugo_import_rows"), "families: %v", names)
}

func TestRecordEvictionIgnoresZero(t *testing.T) {
	m, err := Setup("hugo-test")
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	m.RecordEviction(context.Background(), "sweep", 0)

	assert.False(t, hasPrefix(familyNames(t, m), "hugo_evictions"))
}

func TestPush(t *testing.T) {
	var (
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := Setup("hugo-test")
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	m.RecordOperation(context.Background(), "set", ResultOK, time.Millisecond)

	require.NoError(t, m.Push(context.Background(), srv.URL, "hugo"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/hugo", path)
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultOK, ResultOf(true, nil))
	assert.Equal(t, ResultFalse, ResultOf(false, nil))
	assert.Equal(t, ResultError, ResultOf(true, errors.New("boom")))
}
