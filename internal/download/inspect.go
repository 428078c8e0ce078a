package download

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Summary describes a downloaded export.
type Summary struct {
	Path string
	Size int64
	Rows int
}

// Inspect counts the records of a SIDRA CSV export. The portal's "br.csv"
// format is semicolon separated with title and footnote lines of varying
// width around the data.
func Inspect(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Summary{}, err
	}

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read %s: %w", path, err)
		}
		rows++
	}
	return Summary{Path: path, Size: info.Size(), Rows: rows}, nil
}
