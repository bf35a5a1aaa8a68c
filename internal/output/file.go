package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
)

// FileSink writes each run's artifact to <dir>/apis-<timestamp>.json.
type FileSink struct {
	dir    string
	pretty bool
}

// NewFileSink creates a sink rooted at dir. The directory is created on
// first save.
func NewFileSink(dir string, pretty bool) *FileSink {
	if dir == "" {
		dir = "results"
	}
	return &FileSink{dir: dir, pretty: pretty}
}

// ArtifactFileName names the artifact for ts: the UTC ISO-8601 timestamp
// with colons and dots replaced by dashes.
func ArtifactFileName(ts time.Time) string {
	stamp := ts.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "apis-" + stamp + ".json"
}

// Save writes run.Artifact and returns the file path.
func (s *FileSink) Save(run *Run) (string, error) {
	if run == nil || run.Artifact == nil {
		return "", fmt.Errorf("run has no artifact")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := marshal(run.Artifact, s.pretty)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	path := filepath.Join(s.dir, ArtifactFileName(run.Artifact.Timestamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// Close is a no-op for FileSink.
func (s *FileSink) Close() error {
	return nil
}

// LoadArtifact reads and verifies an artifact file.
func LoadArtifact(path string) (*aggregate.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := aggregate.ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ListArtifacts returns the artifact files in dir, oldest first.
func ListArtifacts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "apis-*.json"))
	if err != nil {
		return nil, err
	}
	// Timestamps in the names sort lexically.
	sort.Strings(matches)
	return matches, nil
}
