package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	o := Options{URL: "http://127.0.0.1:3000/", OutputPath: "/tmp/x.png"}
	require.NoError(t, o.withDefaults())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultReadySelector, o.ReadySelector)
}

func TestCaptureRequiresURLAndOutput(t *testing.T) {
	t.Parallel()

	assert.Error(t, CaptureTimelinePNG(context.Background(), Options{OutputPath: "/tmp/x.png"}))
	assert.Error(t, CaptureTimelinePNG(context.Background(), Options{URL: "http://x"}))
}

func TestWriteAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "timeline.png")
	require.NoError(t, writeAtomic(path, []byte("png")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}
