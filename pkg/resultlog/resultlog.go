// Package resultlog writes one CSV row per processed image.
package resultlog

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/menta2k/inference-bench/pkg/types"
)

// Count column names used by the detection and segmentation runs
const (
	DetectionsColumn = "num_detections"
	MasksColumn      = "num_masks"
)

// Log is an append-only CSV file. Every row is flushed as soon as it is
// written so a crash leaves all completed rows on disk.
type Log struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// Create truncates path and writes the header row
func Create(path, countColumn string) (*Log, error) {
	if countColumn == "" {
		countColumn = DetectionsColumn
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create result log")
	}
	l := &Log{path: path, f: f, w: csv.NewWriter(f)}
	if err := l.write([]string{"image_name", "inference_time_ms", countColumn, "status"}); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the file the log writes to
func (l *Log) Path() string {
	return l.path
}

// Append writes row and flushes it
func (l *Log) Append(row types.ResultRow) error {
	return l.write(Record(row))
}

// Close flushes pending output and releases the file
func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	l.f = nil
	if werr != nil {
		return errors.Wrap(werr, "flush result log")
	}
	return errors.Wrap(cerr, "close result log")
}

func (l *Log) write(rec []string) error {
	if l.f == nil {
		return errors.New("result log is closed")
	}
	if err := l.w.Write(rec); err != nil {
		return errors.Wrap(err, "write result row")
	}
	l.w.Flush()
	return errors.Wrap(l.w.Error(), "flush result row")
}

// Record renders row as CSV fields. Latency is printed with two decimals;
// missing values become empty strings.
func Record(row types.ResultRow) []string {
	latency, count := "", ""
	if row.InferenceTimeMs != nil {
		latency = strconv.FormatFloat(*row.InferenceTimeMs, 'f', 2, 64)
	}
	if row.DetectionCount != nil {
		count = strconv.Itoa(*row.DetectionCount)
	}
	return []string{row.ImageName, latency, count, string(row.Status)}
}
