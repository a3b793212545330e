package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/category-browser/internal/config"
	"github.com/Sternrassler/category-browser/internal/testutil"
	"github.com/Sternrassler/category-browser/pkg/browse"
	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/Sternrassler/category-browser/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with an isolated config lookup.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level=error"))
	err := root.Execute()
	return out.String(), err
}

func fictionCatalog(t *testing.T) *testutil.MockCatalog {
	t.Helper()
	mock := testutil.NewMockCatalog()
	t.Cleanup(mock.Close)
	mock.SetTopic("fiction", testutil.Books(1, 20), testutil.Books(21, 15))
	return mock
}

func TestBrowse_FirstPage(t *testing.T) {
	mock := fictionCatalog(t)

	out, err := run(t, "browse", "Fiction", "--base-url", mock.URL())
	require.NoError(t, err)

	assert.Contains(t, out, "   1. Book 1\n")
	assert.Contains(t, out, "  20. Book 20\n")
	assert.NotContains(t, out, "Book 21")
	assert.Contains(t, out, "20 items shown, more available")
	assert.Equal(t, 1, mock.PageRequestCount("fiction", 1))
	assert.Equal(t, 0, mock.PageRequestCount("fiction", 2))
}

func TestBrowse_AllPages(t *testing.T) {
	mock := fictionCatalog(t)

	out, err := run(t, "browse", "Fiction", "--pages", "0", "--base-url", mock.URL())
	require.NoError(t, err)

	assert.Contains(t, out, "  35. Book 35\n")
	assert.Contains(t, out, "end of Fiction (35 items)")
	assert.Equal(t, 1, mock.PageRequestCount("fiction", 2))
}

func TestBrowse_EmptyCategory(t *testing.T) {
	mock := fictionCatalog(t)

	out, err := run(t, "browse", "Nothing", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "end of Nothing (0 items)")
}

func TestBrowse_FetchFailure(t *testing.T) {
	mock := fictionCatalog(t)
	mock.QueueResponse("fiction", 1, testutil.NewMalformedResponse())

	_, err := run(t, "browse", "Fiction", "--base-url", mock.URL())
	require.Error(t, err)
	assert.Equal(t, catalog.ErrorClassDecode, catalog.ClassOf(err))
}

func TestBrowse_Offline(t *testing.T) {
	mock := fictionCatalog(t)
	down := httptest.NewServer(nil)
	down.Close()

	out, err := run(t, "browse", "Fiction", "--base-url", mock.URL(), "--probe-url", down.URL)
	assert.ErrorIs(t, err, browse.ErrOffline)
	assert.Contains(t, out, "You are offline")
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestExport_JSON(t *testing.T) {
	mock := fictionCatalog(t)

	out, err := run(t, "export", "Fiction", "--base-url", mock.URL())
	require.NoError(t, err)

	var result pagination.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Fiction", result.Category)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 35, result.TotalCount)
	require.Len(t, result.Items, 35)
	assert.Equal(t, int64(1), result.Items[0].ID)
	assert.Equal(t, int64(35), result.Items[34].ID)
}

func TestExport_CSVToFile(t *testing.T) {
	mock := fictionCatalog(t)
	path := filepath.Join(t.TempDir(), "fiction.csv")

	_, err := run(t, "export", "Fiction", "--format", "csv", "-o", path, "--base-url", mock.URL())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 36)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"1", "Book 1", "Author 1", "en", "Fiction", "https://covers.example/1.jpg"}, records[1])
}

func TestExport_UnknownFormat(t *testing.T) {
	mock := fictionCatalog(t)
	_, err := run(t, "export", "Fiction", "--format", "xml", "--base-url", mock.URL())
	assert.ErrorContains(t, err, "unknown format")
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "browse", "Fiction", "--source", "ftp")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigFileFlag(t *testing.T) {
	mock := fictionCatalog(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "catalog:\n  base_url: " + mock.URL() + "\n  user_agent: test-agent\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := run(t, "browse", "Fiction", "--config", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "   1. Book 1"))
	assert.Equal(t, "test-agent", mock.GetLastRequestHeader().Get("User-Agent"))
}

func TestNewSource(t *testing.T) {
	cfg := config.DefaultConfig()

	src, err := newSource(cfg.Catalog, nil)
	require.NoError(t, err)
	assert.IsType(t, &catalog.Client{}, src)

	cfg.Catalog.Source = config.SourceOPDS
	src, err = newSource(cfg.Catalog, nil)
	require.NoError(t, err)
	assert.IsType(t, &catalog.OPDSSource{}, src)

	cfg.Catalog.Source = "ftp"
	_, err = newSource(cfg.Catalog, nil)
	assert.Error(t, err)
}
