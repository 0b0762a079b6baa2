package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/civicpulse/civicsearch/internal/corpus"
	"github.com/civicpulse/civicsearch/internal/indexer/index"
)

const tempPrefix = ".artifact-tmp-"

// Writer serialises a corpus snapshot and its index into a directory.
type Writer struct {
	dir     string
	now     func() time.Time
	buildID func() string
	logger  *slog.Logger
}

// NewWriter creates a Writer that writes artifacts into dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:     dir,
		now:     time.Now,
		buildID: newBuildID,
		logger:  slog.Default().With("component", "artifact-writer"),
	}
}

// Dir returns the artifact directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write persists the corpus, then the index, then the manifest. All three
// are encoded and staged as temp files before any of them replaces the
// previous build, and each replacement is an atomic rename. If a rename
// fails part way, the manifest still describes the previous build and Load
// reports the pair as inconsistent. The returned manifest carries the next
// generation number and a fresh build ID.
func (w *Writer) Write(snap *corpus.Snapshot, idx *index.InvertedIndex, failures []SourceFailure) (*Manifest, error) {
	corpusData, err := encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding corpus snapshot: %w", err)
	}
	indexData, err := encode(idx)
	if err != nil {
		return nil, fmt.Errorf("encoding inverted index: %w", err)
	}

	var generation int64 = 1
	prev, found, err := ReadManifest(w.dir)
	if err != nil {
		w.logger.Warn("previous manifest unreadable, restarting generation count", "error", err)
	} else if found {
		generation = prev.Generation + 1
	}

	stats := make([]CollectionStat, 0, len(snap.Names()))
	for _, name := range snap.Names() {
		stats = append(stats, CollectionStat{Name: name, Records: snap.Count(name)})
	}
	m := &Manifest{
		Generation:   generation,
		BuildID:      w.buildID(),
		BuiltAt:      w.now().UTC(),
		CorpusSHA256: checksum(corpusData),
		IndexSHA256:  checksum(indexData),
		Collections:  stats,
		Documents:    snap.Documents(),
		Terms:        idx.Len(),
		Failures:     failures,
	}
	manifestData, err := encode(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	files := []stagedFile{
		{name: CorpusFile, data: corpusData},
		{name: IndexFile, data: indexData},
		{name: ManifestFile, data: manifestData},
	}
	if err := w.commit(files); err != nil {
		return nil, err
	}
	w.logger.Info("artifacts written",
		"dir", w.dir,
		"generation", m.Generation,
		"build_id", m.BuildID,
		"documents", m.Documents,
		"terms", m.Terms,
		"corpus_bytes", len(corpusData),
		"index_bytes", len(indexData),
	)
	return m, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type stagedFile struct {
	name string
	data []byte
	tmp  string
}

// commit writes every file to a synced temp file in the artifact directory
// and only then renames them into place, in order. A failure while staging
// leaves every existing artifact untouched.
func (w *Writer) commit(files []stagedFile) error {
	defer func() {
		for _, f := range files {
			if f.tmp != "" {
				os.Remove(f.tmp)
			}
		}
	}()
	for i := range files {
		tmp, err := stage(w.dir, files[i].data)
		if err != nil {
			return fmt.Errorf("staging %s: %w", files[i].name, err)
		}
		files[i].tmp = tmp
	}
	for i := range files {
		target := filepath.Join(w.dir, files[i].name)
		if err := os.Rename(files[i].tmp, target); err != nil {
			return fmt.Errorf("renaming %s into place: %w", files[i].name, err)
		}
		files[i].tmp = ""
	}
	return nil
}

func stage(dir string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	return name, nil
}
