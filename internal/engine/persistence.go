// Package engine implements the embedded, in-memory document store.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
)

// Persistence handles the disk I/O for the MemStore.
// Each collection lives in <DataDir>/<collection>.json as an array of documents in
// canonical Extended JSON, which keeps field order and ObjectIDs intact.
type Persistence struct {
	DataDir string
	log     *logger.Logger
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string, log *logger.Logger) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, log: log.With("component", "engine.persistence")}, nil
}

// SaveCollection writes a collection atomically: temp file first, then rename.
func (p *Persistence) SaveCollection(name string, docs []record.RawRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, fmt.Sprintf("%s.json", name))
	tempPath := filePath + ".tmp"

	encoded := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		b, err := bson.MarshalExtJSON(doc.BSON(), true, false)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		encoded = append(encoded, b)
	}
	bytes, err := json.MarshalIndent(encoded, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}
	// Either the old file or the new one survives a crash, never a torn write.
	return os.Rename(tempPath, filePath)
}

// LoadAll returns every collection found in the data directory.
// Unreadable files are skipped with a warning.
func (p *Persistence) LoadAll() (map[string][]record.RawRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make(map[string][]record.RawRecord)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			p.log.Warn("could not read collection file", "file", file.Name(), "error", err)
			continue
		}
		var encoded []json.RawMessage
		if err := json.Unmarshal(content, &encoded); err != nil {
			p.log.Warn("could not unmarshal collection file", "file", file.Name(), "error", err)
			continue
		}
		docs := make([]record.RawRecord, 0, len(encoded))
		for i, raw := range encoded {
			var d bson.D
			if err := bson.UnmarshalExtJSON(raw, true, &d); err != nil {
				p.log.Warn("skipping undecodable document", "file", file.Name(), "index", i, "error", err)
				continue
			}
			docs = append(docs, record.FromBSON(d))
		}
		all[name] = docs
	}
	return all, nil
}
