// Package perflog keeps the append-only CSV log of client performance samples:
//
//	timestamp,connection_type,data_size_bytes,duration_seconds
package perflog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Log struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance log: %w", err)
	}
	return &Log{path: path, file: f}, nil
}

func (l *Log) Path() string {
	return l.path
}

// Append writes one fully formatted record with a single write call, so
// concurrent appenders never interleave partial lines.
func (l *Log) Append(s models.PerformanceSample) error {
	record := []byte(FormatRecord(s))
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("performance log is closed")
	}
	if _, err := l.file.Write(record); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func FormatRecord(s models.PerformanceSample) string {
	return fmt.Sprintf("%s,%s,%d,%.6f\n",
		s.Timestamp.Local().Format(TimestampLayout),
		s.ConnectionType,
		s.DataSize,
		s.Duration.Seconds(),
	)
}

// Remove deletes the log file; a missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove performance log: %w", err)
	}
	return nil
}

func Load(path string) ([]models.PerformanceSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance log: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) ([]models.PerformanceSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	var samples []models.PerformanceSample
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read performance log: %w", err)
		}
		line, _ := cr.FieldPos(0)
		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
}

func parseRecord(rec []string) (models.PerformanceSample, error) {
	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(rec[0]), time.Local)
	if err != nil {
		return models.PerformanceSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	connType := models.ConnectionType(strings.TrimSpace(rec[1]))
	if !connType.Valid() {
		return models.PerformanceSample{}, fmt.Errorf("invalid connection type %q", rec[1])
	}
	size, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
	if err != nil {
		return models.PerformanceSample{}, fmt.Errorf("invalid data size: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return models.PerformanceSample{}, fmt.Errorf("invalid duration: %w", err)
	}
	duration := time.Duration(secs * float64(time.Second))
	return models.NewPerformanceSample(ts, connType, size, duration), nil
}
