package testfile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultName        = "test_file.txt"
	DefaultPattern     = "Hello World!"
	DefaultRepetitions = 15
)

// RandomSizes are the random benchmark payloads produced by the genfiles command.
var RandomSizes = map[string]int{
	"2mb_random_file.bin":  2 << 20,
	"8mb_random_file.bin":  8 << 20,
	"16mb_random_file.bin": 16 << 20,
	"32mb_random_file.bin": 32 << 20,
	"64mb_random_file.bin": 64 << 20,
}

// GeneratePattern writes pattern followed by a newline, repetitions times.
func GeneratePattern(path, pattern string, repetitions int) error {
	content := strings.Repeat(pattern+"\n", repetitions)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to generate pattern file %s: %w", path, err)
	}
	return nil
}

// GenerateRandom writes exactly size bytes of hex encoded random data.
func GenerateRandom(path string, size int) error {
	raw := make([]byte, (size+1)/2)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to read random bytes: %w", err)
	}
	encoded := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(encoded, raw)
	if err := os.WriteFile(path, encoded[:size], 0644); err != nil {
		return fmt.Errorf("failed to generate random file %s: %w", path, err)
	}
	return nil
}

// EnsurePattern creates the default pattern file unless path already exists.
func EnsurePattern(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := GeneratePattern(path, DefaultPattern, DefaultRepetitions); err != nil {
		return false, err
	}
	return true, nil
}
