// Package indexer imports GeoJSON layer files into the layer registry and the full-text index.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/layers"
	"go.uber.org/zap"
)

// DefaultNameProperty is the feature property indexed for search.
const DefaultNameProperty = "name"

// Indexer imports layer files.
type Indexer struct {
	registry     layers.Registry
	keywordIndex keyword.FeatureIndex
	nameProperty string
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (layer imported, layer deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithNameProperty sets the feature property that holds the searchable name.
func WithNameProperty(prop string) IndexerOption {
	return func(idx *Indexer) {
		if prop != "" {
			idx.nameProperty = prop
		}
	}
}

// NewIndexer creates an indexer. keywordIndex may be nil, in which case layers are only
// registered and not made searchable.
func NewIndexer(registry layers.Registry, keywordIndex keyword.FeatureIndex, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		registry:     registry,
		keywordIndex: keywordIndex,
		nameProperty: DefaultNameProperty,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// LayerName derives the layer name from a file path: its base name without extension.
func LayerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportFile reads a GeoJSON feature collection from path and stores it as the layer
// LayerName(path), replacing any previous content. The collection's "title" member, when
// present, becomes the layer title. Unchanged files (same path, mtime and size) are
// skipped and reported with imported == false.
func (idx *Indexer) ImportFile(ctx context.Context, path string, allowedExts []string) (imported bool, err error) {
	idx.logger.Debug("indexer importing layer file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return false, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}

	name := LayerName(absPath)
	if existing, getErr := idx.registry.GetLayer(ctx, name); getErr == nil &&
		existing.SourcePath == absPath &&
		existing.SourceMtime == info.ModTime().UnixNano() &&
		existing.SourceSize == info.Size() {
		idx.logger.Debug("indexer skipping unchanged layer", zap.String("layer", name))
		return false, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("read file: %w", err)
	}
	fc, err := geo.ReadFeatureCollection(data)
	if err != nil {
		return false, err
	}
	title := name
	if t, ok := fc.ExtraMembers["title"].(string); ok && t != "" {
		title = t
	}

	layer := &layers.Layer{
		Name:        name,
		Title:       title,
		SourcePath:  absPath,
		SourceMtime: info.ModTime().UnixNano(),
		SourceSize:  info.Size(),
	}
	if err := idx.registry.ReplaceLayer(ctx, layer, fc.Features); err != nil {
		return false, fmt.Errorf("failed to store layer: %w", err)
	}

	if idx.keywordIndex != nil {
		if _, err := idx.keywordIndex.DeleteLayer(ctx, name); err != nil {
			return false, fmt.Errorf("failed to clear keyword index: %w", err)
		}
		for _, f := range fc.Features {
			fid := layers.FeatureID(f)
			fname := NormalizeName(f.Properties.MustString(idx.nameProperty, ""))
			if fid == "" || fname == "" {
				continue
			}
			doc := &keyword.Document{Layer: name, FeatureID: fid, Name: fname, LayerTitle: title}
			if err := idx.keywordIndex.Index(ctx, doc); err != nil {
				return false, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
	}
	idx.logger.Debug("indexer layer imported",
		zap.String("layer", name), zap.Int64("features", layer.FeatureCount))
	return true, nil
}

// ImportDirectory walks dir recursively and imports each regular file whose extension
// is in allowedExts (if non-empty; otherwise all files). Returns the number of layers
// imported and the first error encountered, if any.
func (idx *Indexer) ImportDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		imported, importErr := idx.ImportFile(ctx, path, allowedExts)
		if importErr != nil {
			return fmt.Errorf("%s: %w", path, importErr)
		}
		if imported {
			n++
		}
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeleteLayer removes a layer from the keyword index and the registry.
func (idx *Indexer) DeleteLayer(ctx context.Context, name string) error {
	idx.logger.Debug("indexer deleting layer", zap.String("layer", name))
	if idx.keywordIndex != nil {
		if _, err := idx.keywordIndex.DeleteLayer(ctx, name); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if err := idx.registry.DeleteLayer(ctx, name); err != nil {
		return fmt.Errorf("failed to delete layer: %w", err)
	}
	return nil
}

// RemoveFile deletes the layer imported from path.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	return idx.DeleteLayer(ctx, LayerName(path))
}
