// Package artifact persists and loads the two build artifacts, the corpus
// snapshot and the inverted index, as human-readable JSON files. A manifest
// written after both carries a generation counter, a random build ID and
// their checksums so a reader can tell whether the pair on disk came from
// the same build. The generation restarts at 1 when the manifest is lost;
// the build ID does not repeat.
package artifact

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	CorpusFile   = "ingested_data.json"
	IndexFile    = "index.json"
	ManifestFile = "manifest.json"
)

// CollectionStat records how many records a collection contributed.
type CollectionStat struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// SourceFailure records a collection that could not be loaded.
type SourceFailure struct {
	Collection string `json:"collection"`
	Error      string `json:"error"`
}

// Manifest describes one completed build.
type Manifest struct {
	Generation   int64            `json:"generation"`
	BuildID      string           `json:"build_id"`
	BuiltAt      time.Time        `json:"built_at"`
	CorpusSHA256 string           `json:"corpus_sha256"`
	IndexSHA256  string           `json:"index_sha256"`
	Collections  []CollectionStat `json:"collections"`
	Documents    int              `json:"documents"`
	Terms        int              `json:"terms"`
	Failures     []SourceFailure  `json:"failures,omitempty"`
}

// ReadManifest reads the manifest in dir. found is false when no manifest
// has been written yet.
func ReadManifest(dir string) (m *Manifest, found bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading manifest: %w", err)
	}
	var out Manifest
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, true, fmt.Errorf("parsing manifest: %w", err)
	}
	return &out, true, nil
}

func newBuildID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func checksum(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
