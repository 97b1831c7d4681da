package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/david/bidsense/internal/ingest"
)

// Files reads documents and listing feeds, and writes exports, at local
// paths or any URL scheme afs understands.
type Files struct {
	fs afs.Service
}

func NewFiles() *Files {
	return &Files{fs: afs.New()}
}

// normalizeLocation turns a relative or absolute local path into a file URL.
func normalizeLocation(location string) (string, error) {
	if url.Scheme(location, "") != "" {
		return location, nil
	}
	if url.IsRelative(location) {
		abs, err := filepath.Abs(location)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", location, err)
		}
		location = abs
	}
	return url.ToFileURL(location), nil
}

// Documents returns the file at location, or every file directly inside it
// when location is a directory. The format hint comes from the file name.
func (in *Files) Documents(ctx context.Context, location, source string) ([]ingest.RawDocument, error) {
	norm, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}
	object, err := in.fs.Object(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}

	files := []storage.Object{object}
	if object.IsDir() {
		objects, err := in.fs.List(ctx, norm)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", location, err)
		}
		files = files[:0]
		for _, o := range objects {
			if !o.IsDir() {
				files = append(files, o)
			}
		}
	}

	docs := make([]ingest.RawDocument, 0, len(files))
	for _, f := range files {
		data, err := in.fs.DownloadWithURL(ctx, f.URL())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.URL(), err)
		}
		name := f.Name()
		docs = append(docs, ingest.RawDocument{
			Name:   name,
			Data:   data,
			Format: ingest.FormatFromFilename(name),
			Source: source,
		})
	}
	return docs, nil
}

// Listings decodes a JSON array of listings.
func (in *Files) Listings(ctx context.Context, location string) ([]ingest.Listing, error) {
	norm, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}
	data, err := in.fs.DownloadWithURL(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	var listings []ingest.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("decode listings %s: %w", location, err)
	}
	return listings, nil
}

// Write stores data at location, replacing any existing object.
func (in *Files) Write(ctx context.Context, location string, data []byte) error {
	norm, err := normalizeLocation(location)
	if err != nil {
		return err
	}
	if err := in.fs.Upload(ctx, norm, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", location, err)
	}
	return nil
}
