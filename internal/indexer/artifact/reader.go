package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/civicpulse/civicsearch/internal/corpus"
	"github.com/civicpulse/civicsearch/internal/indexer/index"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
)

// Bundle is an immutable corpus and index pair loaded from disk. Manifest
// is nil for artifacts written without one.
type Bundle struct {
	Manifest *Manifest
	Corpus   *corpus.Snapshot
	Index    *index.InvertedIndex

	// digest fingerprints manifest-less artifacts read from disk.
	digest string
}

// NewBundle pairs an in-memory corpus and index, e.g. straight from a build.
func NewBundle(m *Manifest, snap *corpus.Snapshot, idx *index.InvertedIndex) *Bundle {
	return &Bundle{Manifest: m, Corpus: snap, Index: idx}
}

// Generation returns the manifest generation, or 0 when there is none.
func (b *Bundle) Generation() int64 {
	if b == nil || b.Manifest == nil {
		return 0
	}
	return b.Manifest.Generation
}

// BuildID returns the manifest build ID, or "" when there is none.
func (b *Bundle) BuildID() string {
	if b == nil || b.Manifest == nil {
		return ""
	}
	return b.Manifest.BuildID
}

// Identity names the build this bundle came from, e.g. "g3-9f2c41d07ab3e815".
// Two bundles with the same identity hold the same artifacts, even across
// a manifest loss that restarted the generation count.
func (b *Bundle) Identity() string {
	switch {
	case b == nil:
		return "none"
	case b.Manifest == nil && b.digest != "":
		return "g0-" + b.digest
	case b.Manifest == nil:
		return "g0"
	case b.Manifest.BuildID != "":
		return fmt.Sprintf("g%d-%s", b.Manifest.Generation, b.Manifest.BuildID)
	default:
		// Manifests written before build IDs existed.
		return fmt.Sprintf("g%d-%.16s", b.Manifest.Generation, b.Manifest.CorpusSHA256)
	}
}

// Load reads the corpus and index from dir. A missing file yields
// ErrMissingArtifacts; a checksum mismatch against the manifest, an
// undecodable file, or an index entry pointing outside the corpus yields
// ErrInconsistentArtifacts.
func Load(dir string) (*Bundle, error) {
	indexData, err := readArtifact(dir, IndexFile)
	if err != nil {
		return nil, err
	}
	corpusData, err := readArtifact(dir, CorpusFile)
	if err != nil {
		return nil, err
	}
	m, found, err := ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInconsistentArtifacts, err)
	}
	if found {
		if checksum(corpusData) != m.CorpusSHA256 {
			return nil, fmt.Errorf("%w: corpus checksum does not match generation %d", apperrors.ErrInconsistentArtifacts, m.Generation)
		}
		if checksum(indexData) != m.IndexSHA256 {
			return nil, fmt.Errorf("%w: index checksum does not match generation %d", apperrors.ErrInconsistentArtifacts, m.Generation)
		}
	}

	var snap corpus.Snapshot
	if err := json.Unmarshal(corpusData, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInconsistentArtifacts, err)
	}
	idx := index.New()
	if err := json.Unmarshal(indexData, idx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInconsistentArtifacts, err)
	}
	if err := idx.Validate(func(ref index.DocRef) bool {
		_, ok := snap.Resolve(ref.Collection, ref.Pos)
		return ok
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInconsistentArtifacts, err)
	}
	b := &Bundle{Manifest: m, Corpus: &snap, Index: idx}
	if !found {
		b.digest = checksum(corpusData, indexData)[:16]
	}
	return b, nil
}

func readArtifact(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found in %s", apperrors.ErrMissingArtifacts, name, dir)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
