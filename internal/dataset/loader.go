// Package dataset loads sales tables from a directory, normalizes the known
// schema shapes and summarizes the result for prompting.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/charmap"

	"github.com/KaramelBytes/salesloom-cli/internal/logging"
)

// maxFileBytes bounds the decompressed size of a single dataset file.
const maxFileBytes = 512 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options tunes Load.
type Options struct {
	Logger *slog.Logger
}

// Load reads every recognized tabular file in dir (non-recursively). A missing
// directory yields an empty collection. Files that cannot be read or parsed
// are logged and skipped.
func Load(ctx context.Context, dir string, opts Options) (*Collection, error) {
	log := logging.OrNop(opts.Logger)
	out := NewCollection()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("data directory not found", "dir", dir)
			return out, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || extOf(e.Name()) == "" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := LoadFile(path)
		if err != nil {
			log.Warn("skipping file", "file", e.Name(), "err", err)
			continue
		}
		if prev, ok := out.Get(t.Name); ok {
			log.Warn("dataset name collision, replacing", "name", t.Name, "previous", filepath.Base(prev.Source), "file", e.Name())
		}
		out.Put(t)
		log.Info("loaded dataset", "name", t.Name, "rows", t.Rows(), "columns", len(t.Columns), "shape", t.Shape)
	}
	return out, nil
}

// LoadFile parses and normalizes a single file.
func LoadFile(path string) (*Table, error) {
	ext := extOf(path)
	if ext == "" {
		return nil, fmt.Errorf("unrecognized extension: %s", filepath.Base(path))
	}
	data, err := readFile(path, ext)
	if err != nil {
		return nil, err
	}
	var records [][]string
	if ext == ".xlsx" {
		records, err = readXLSX(data)
	} else {
		records, err = parseDelimited(decodeText(data), delimiterFor(ext))
	}
	if err != nil {
		return nil, err
	}
	t := newTable(uniqueNames(records[0]), records[1:])
	t.Name = DatasetName(path)
	t.Source = path
	return Normalize(t), nil
}

func readFile(path, ext string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch ext {
	case ".csv.gz", ".tsv.gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case ".csv.zst", ".tsv.zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(io.LimitReader(r, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileBytes)
	}
	return data, nil
}

// decodeText strips a UTF-8 BOM and falls back to ISO-8859-1 when the bytes
// are not valid UTF-8.
func decodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

func delimiterFor(ext string) rune {
	switch ext {
	case ".tsv", ".tsv.gz", ".tsv.zst":
		return '\t'
	}
	return ','
}

func parseDelimited(data []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("parse: no header row")
	}
	return records, nil
}
