package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocktimeline/internal/timeline"
)

const blocksJSON = `[
  {"program": "BLOCK-55_v2", "begin": "2024-05-01T22:00:00.000Z", "end": "2024-05-02T02:00:00.000Z", "seq_num_0": 1, "seq_num_1": 40},
  {"program": "BLOCK-12", "begin": "2024-05-02T13:00:00.250", "end": "2024-05-02T17:00:00Z", "seq_num_0": 41, "seq_num_1": 90}
]`

func TestParseBlocks(t *testing.T) {
	t.Parallel()

	blocks, err := ParseBlocks([]byte(blocksJSON))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "BLOCK-55_v2", blocks[0].Program)
	assert.Equal(t, time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC), blocks[0].Begin)
	assert.Equal(t, 40, blocks[0].SeqEnd)

	// Zone-less timestamps are UTC.
	assert.Equal(t, time.Date(2024, 5, 2, 13, 0, 0, 250*int(time.Millisecond), time.UTC), blocks[1].Begin)
	assert.Equal(t, 41, blocks[1].SeqStart)
}

func TestParseBlocksValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		index int
		field string
	}{
		{
			name:  "end before begin",
			body:  `[{"program":"A","begin":"2024-05-01T20:00:00Z","end":"2024-05-01T21:00:00Z"},{"program":"B","begin":"2024-05-01T20:00:00Z","end":"2024-05-01T19:00:00Z"}]`,
			index: 1,
			field: "end",
		},
		{
			name:  "missing program",
			body:  `[{"begin":"2024-05-01T20:00:00Z","end":"2024-05-01T21:00:00Z"}]`,
			index: 0,
			field: "program",
		},
		{
			name:  "bad begin",
			body:  `[{"program":"A","begin":"2024-05-01T20:00:00Z","end":"2024-05-01T21:00:00Z"},{"program":"A","begin":"2024-05-01T20:00:00Z","end":"2024-05-01T21:00:00Z"},{"program":"A","begin":"yesterday","end":"2024-05-01T21:00:00Z"}]`,
			index: 2,
			field: "begin",
		},
		{
			name:  "missing end",
			body:  `[{"program":"A","begin":"2024-05-01T20:00:00Z"}]`,
			index: 0,
			field: "end",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseBlocks([]byte(tt.body))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.index, verr.Index)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseBlocksBadJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseBlocks(nil)
	assert.Error(t, err)

	_, err = ParseBlocks([]byte(`{"program":"A"}`))
	assert.Error(t, err)
}

func TestParseTable(t *testing.T) {
	t.Parallel()

	table, err := ParseTable([]byte(`{"BLOCK-T55":"Test slew"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"BLOCK-T55": "Test slew"}, table)

	table, err = ParseTable([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, table)

	table, err = ParseTable(nil)
	require.NoError(t, err)
	assert.Empty(t, table)

	_, err = ParseTable([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestFetchOneUsesETagCache(t *testing.T) {
	t.Parallel()

	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(blocksJSON))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "blocks", URL: srv.URL + "/blocks.json?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestFetchOneFallsBackOnServerError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"A":"a"}`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "descriptions", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, `{"A":"a"}`, string(res.Body))

	_, err = NewFetcher(t.TempDir()).FetchOne(context.Background(), src)
	assert.Error(t, err, "no cache to fall back to")
}

func TestFetchOneLocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.json")
	require.NoError(t, os.WriteFile(path, []byte(blocksJSON), 0o600))

	f := NewFetcher(dir)
	res, err := f.FetchOne(context.Background(), Source{ID: "blocks", URL: path})
	require.NoError(t, err)
	assert.Equal(t, blocksJSON, string(res.Body))

	res, err = f.FetchOne(context.Background(), Source{ID: "blocks", URL: "file://" + path})
	require.NoError(t, err)
	assert.Equal(t, blocksJSON, string(res.Body))

	_, err = f.FetchOne(context.Background(), Source{ID: "blocks"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocksPath := filepath.Join(dir, "blocks.json")
	tablePath := filepath.Join(dir, "descriptions.json")
	require.NoError(t, os.WriteFile(blocksPath, []byte(blocksJSON), 0o600))
	require.NoError(t, os.WriteFile(tablePath, []byte(`{"BLOCK-T55":"Test slew"}`), 0o600))

	f := NewFetcher(dir)
	p, err := Load(context.Background(), f,
		Source{ID: "blocks", URL: blocksPath},
		Source{ID: "descriptions", URL: tablePath},
	)
	require.NoError(t, err)
	assert.Len(t, p.Blocks, 2)
	assert.Equal(t, "Test slew", p.Descriptions["BLOCK-T55"])

	// A missing description table is tolerated.
	p, err = Load(context.Background(), f,
		Source{ID: "blocks", URL: blocksPath},
		Source{ID: "descriptions", URL: filepath.Join(dir, "missing.json")},
	)
	require.NoError(t, err)
	assert.Empty(t, p.Descriptions)

	// So is a table with the wrong value types; the blocks still load.
	badTable := filepath.Join(dir, "bad-descriptions.json")
	require.NoError(t, os.WriteFile(badTable, []byte(`{"BLOCK-1": 5}`), 0o600))
	p, err = Load(context.Background(), f,
		Source{ID: "blocks", URL: blocksPath},
		Source{ID: "descriptions", URL: badTable},
	)
	require.NoError(t, err)
	assert.Len(t, p.Blocks, 2)
	assert.NotNil(t, p.Descriptions)
	assert.Empty(t, p.Descriptions)

	// A missing block list is not.
	_, err = Load(context.Background(), f,
		Source{ID: "blocks", URL: filepath.Join(dir, "missing.json")},
		Source{},
	)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.org/...(redacted)", redactURL("https://example.org/a/b.json?token=x"))
	assert.Equal(t, "https://example.org/...(redacted)", redactURL("https://example.org"))
	assert.Equal(t, "/tmp/blocks.json", redactURL("/tmp/blocks.json"))
}

func TestExportICS(t *testing.T) {
	t.Parallel()

	blocks, err := ParseBlocks([]byte(blocksJSON))
	require.NoError(t, err)
	table := map[string]string{"BLOCK-T55": "Test slew"}
	ds := timeline.Build(blocks, table, timeline.Options{})

	out := ExportICS(ds, table)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)

	summary := events[0].GetProperty(ical.ComponentPropertySummary)
	require.NotNil(t, summary)
	assert.Equal(t, "BLOCK-55_v2", summary.Value)

	start, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(blocks[0].Begin))

	desc := events[0].GetProperty(ical.ComponentPropertyDescription)
	require.NotNil(t, desc)
	assert.Contains(t, desc.Value, "Test slew")
}
