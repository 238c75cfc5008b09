package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/model"
)

// DirSource reads raw record batches dropped as JSON files into a
// directory, one file per scraper run. Each file holds either a single
// record object or an array of them.
type DirSource struct {
	dir string
}

// NewDir creates a DirSource over the given directory.
func NewDir(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

// Fetch reads every *.json file in the directory in lexical order.
// Malformed files are logged and skipped.
func (s *DirSource) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "source: read raw dir")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []model.RawRecord
	for _, name := range names {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: fetch cancelled")
		}

		path := filepath.Join(s.dir, name)
		batch, err := readRawFile(path)
		if err != nil {
			zap.L().Warn("skipping malformed raw file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		records = append(records, batch...)
	}
	return records, nil
}

func readRawFile(path string) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: read raw file")
	}

	// Try an array first, then a single object.
	var batch []model.RawRecord
	if err := json.Unmarshal(data, &batch); err == nil {
		return defaultFetchedAt(batch, path), nil
	}
	var one model.RawRecord
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, eris.Wrap(err, "source: parse raw file")
	}
	return defaultFetchedAt([]model.RawRecord{one}, path), nil
}

// defaultFetchedAt fills missing fetch timestamps from the file's mtime so
// provenance ordering still works for hand-dropped files.
func defaultFetchedAt(batch []model.RawRecord, path string) []model.RawRecord {
	var mtime time.Time
	for i := range batch {
		if !batch[i].FetchedAt.IsZero() {
			continue
		}
		if mtime.IsZero() {
			if info, err := os.Stat(path); err == nil {
				mtime = info.ModTime().UTC()
			} else {
				mtime = time.Now().UTC()
			}
		}
		batch[i].FetchedAt = mtime
	}
	return batch
}
