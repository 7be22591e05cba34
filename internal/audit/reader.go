package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/segmentio/parquet-go"
)

// ScanParquetDir streams every audit entry recorded under dir in rotation
// order (file names sort by creation time) and calls fn for each. A non-nil
// error from fn stops the scan and is returned unchanged.
func ScanParquetDir(dir string, fn func(Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "audit-*.parquet"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, path := range files {
		if err := scanParquetFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func scanParquetFile(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewReader(f)
	defer reader.Close()

	for {
		var e Entry
		err := reader.Read(&e)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
