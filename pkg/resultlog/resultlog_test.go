package resultlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/inference-bench/pkg/types"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLogRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.csv")
	l, err := Create(path, MasksColumn)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	require.NoError(t, l.Append(types.OKRow("a.jpg", 12.3456, 3)))
	require.NoError(t, l.Append(types.FailedRow("b.jpg", types.StatusInvocationError)))
	require.NoError(t, l.Append(types.OKRow("c, d.png", 0.004, 0)))

	// rows are visible before Close
	rows := readRows(t, path)
	require.Len(t, rows, 4)

	require.NoError(t, l.Close())
	assert.Equal(t, [][]string{
		{"image_name", "inference_time_ms", "num_masks", "status"},
		{"a.jpg", "12.35", "3", "ok"},
		{"b.jpg", "", "", "invocation_error"},
		{"c, d.png", "0.00", "0", "ok"},
	}, readRows(t, path))
}

func TestCreateDefaultsCountColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.csv")
	l, err := Create(path, "")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image_name,inference_time_ms,num_detections,status\n", string(raw))
}

func TestAppendAfterClose(t *testing.T) {
	l, err := Create(filepath.Join(t.TempDir(), "timing.csv"), DetectionsColumn)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.Error(t, l.Append(types.FailedRow("x.jpg", types.StatusUnreadableImage)))
}

func TestCreateInMissingDir(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "nope", "timing.csv"), DetectionsColumn)
	assert.Error(t, err)
}
