package builder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata describes one build for later inspection. Secrets in the command,
// the Dockerfile and builder options are redacted before it is written.
type Metadata struct {
	ImageURI       string         `json:"image_uri"`
	Command        string         `json:"command"`
	BuilderOptions map[string]any `json:"builder_options"`
	Dockerfile     string         `json:"dockerfile"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MetadataPath is where the metadata for build context id is written.
func MetadataPath(baseDir, contextID string) string {
	return filepath.Join(baseDir, contextID+".metadata.json")
}

func writeMetadata(path string, m Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode build metadata: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write build metadata: %w", err)
	}
	return nil
}

var timeNow = time.Now

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
