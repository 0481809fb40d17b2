package upload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"video-catalog/pkg/storage"
)

// File pairs a local file with its destination key.
type File struct {
	Path string
	Rel  string
	Key  string
}

// Result is the outcome of one file of a batch.
type Result struct {
	File File
	Err  error
}

// Collect flattens dir into files keyed by prefix plus their path relative
// to dir. A plain file yields a single entry keyed by its base name.
func Collect(dir, prefix string) ([]File, error) {
	base := storage.NormalizePrefix(prefix)

	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		name := filepath.Base(dir)
		return []File{{Path: dir, Rel: name, Key: base + name}}, nil
	}

	var files []File
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && storage.Hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if storage.Hidden(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, File{Path: path, Rel: rel, Key: base + rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

// UploadAll uploads every file concurrently, one goroutine per file. A file
// failing does not stop the others; each result carries its own error.
// progress may be nil.
func (c *Client) UploadAll(ctx context.Context, files []File, progress func(f File, percent int)) []Result {
	results := make([]Result, len(files))
	var g errgroup.Group
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			var cb ProgressFunc
			if progress != nil {
				cb = func(p int) { progress(f, p) }
			}
			results[i] = Result{File: f, Err: c.UploadFile(ctx, f.Path, f.Key, cb)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
