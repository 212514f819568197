// Package storage persists received payloads. It is wired into the session
// handler only when a save directory is configured.
package storage

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

const DefaultDir = "received_files"

type DirSink struct {
	dir string
	now func() time.Time
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &DirSink{dir: dir, now: time.Now}, nil
}

func (s *DirSink) OnPayloadComplete(sessionID, remote string, payload []byte) error {
	path := filepath.Join(s.dir, s.fileName(sessionID, remote))
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to save file %s: %w", path, err)
	}
	logger.Log.Info("File saved", "path", path, "bytes", len(payload))
	return nil
}

// fileName follows received_from_<host>_<port>_<timestamp>_<session>.bin.
func (s *DirSink) fileName(sessionID, remote string) string {
	host, port, err := net.SplitHostPort(remote)
	if err != nil {
		host, port = remote, "0"
	}
	host = strings.NewReplacer(":", "_", "%", "_", "/", "_").Replace(host)
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("received_from_%s_%s_%s_%s.bin", host, port, s.now().Format("20060102_150405"), short)
}
