package columnar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hprofdecode/internal/storage"
	"github.com/hprofdecode/pkg/compression"
	"github.com/hprofdecode/pkg/config"
	"github.com/hprofdecode/pkg/writer"
)

// RowCounts reports how many rows of each table Flush has written so far.
type RowCounts struct {
	Strings         int64 `json:"strings"`
	Classes         int64 `json:"classes"`
	Instances       int64 `json:"instances"`
	InstanceFields  int64 `json:"instance_fields"`
	ObjectArrays    int64 `json:"object_arrays"`
	PrimitiveArrays int64 `json:"primitive_arrays"`
	Summaries       int64 `json:"summaries"`
	Threads         int64 `json:"threads"`
	Roots           int64 `json:"roots"`
}

// RowCounts returns a snapshot of the rows written by Flush so far.
func (c *Consumer) RowCounts() RowCounts {
	return RowCounts{
		Strings:         atomic.LoadInt64(&c.countStrings),
		Classes:         atomic.LoadInt64(&c.countClasses),
		Instances:       atomic.LoadInt64(&c.countInstances),
		InstanceFields:  atomic.LoadInt64(&c.countInstanceFields),
		ObjectArrays:    atomic.LoadInt64(&c.countObjArrays),
		PrimitiveArrays: atomic.LoadInt64(&c.countPrimArrays),
		Summaries:       atomic.LoadInt64(&c.countSummaries),
		Threads:         atomic.LoadInt64(&c.countThreads),
		Roots:           atomic.LoadInt64(&c.countRoots),
	}
}

// UploadArtifact writes the consumer's row counts as a zstd-compressed JSON
// manifest and uploads it through storeCfg's backend (local disk or Tencent
// COS). It describes what Flush wrote to the database; it is not a
// replacement for the database export itself. Call after Flush.
func (c *Consumer) UploadArtifact(ctx context.Context, storeCfg *config.StorageConfig) (string, error) {
	store, err := storage.NewStorage(storeCfg)
	if err != nil {
		return "", fmt.Errorf("failed to open storage backend: %w", err)
	}

	manifestPath, err := os.CreateTemp("", "hprof-export-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := manifestPath.Name()
	manifestPath.Close()
	defer os.Remove(tmpPath)

	if err := writer.NewJSONWriter[RowCounts]().WriteToFile(c.RowCounts(), tmpPath); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}

	zc, err := compression.NewZstdCompressor(compression.LevelDefault)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd compressor: %w", err)
	}
	defer zc.Close()
	compressed, err := zc.Compress(raw)
	if err != nil {
		return "", fmt.Errorf("failed to compress manifest: %w", err)
	}

	compressedPath := tmpPath + ".zst"
	if err := os.WriteFile(compressedPath, compressed, 0644); err != nil {
		return "", fmt.Errorf("failed to write compressed manifest: %w", err)
	}
	defer os.Remove(compressedPath)

	key := filepath.Base(compressedPath)
	if err := store.UploadFile(ctx, key, compressedPath); err != nil {
		return "", fmt.Errorf("failed to upload manifest: %w", err)
	}
	return store.GetURL(key), nil
}
