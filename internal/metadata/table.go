package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

// Record is one row of the painting table, keyed by image basename.
type Record struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// Table maps image basenames to painting records. It is never mutated after load.
type Table struct {
	records map[string]Record
}

// NewTable builds a table from records; the first record for a filename wins.
func NewTable(records []Record) *Table {
	t := &Table{records: make(map[string]Record, len(records))}
	for _, r := range records {
		r.Filename = Basename(r.Filename)
		if r.Filename == "" {
			continue
		}
		if _, dup := t.records[r.Filename]; dup {
			continue
		}
		if r.Title == "" {
			r.Title = UnknownTitle
		}
		if r.Artist == "" {
			r.Artist = UnknownArtist
		}
		t.records[r.Filename] = r
	}
	return t
}

// Lookup returns the title and artist for filename, or the sentinel strings on a miss.
func (t *Table) Lookup(filename string) (title, artist string, ok bool) {
	if t != nil {
		if r, found := t.records[filename]; found {
			return r.Title, r.Artist, true
		}
	}
	return UnknownTitle, UnknownArtist, false
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Basename strips everything up to the last slash. Surrounding whitespace is part
// of the key.
func Basename(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// LoadCSV reads a header-first CSV with an image_path column and optional
// description and artist columns.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open metadata CSV: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read header row: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	pathCol, ok := cols["image_path"]
	if !ok {
		// Without the key column nothing can match; every lookup falls back to sentinels.
		return NewTable(nil), nil
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var records []Record
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read metadata CSV: %w", err)
		}
		if pathCol >= len(record) {
			continue
		}
		records = append(records, Record{
			Filename: record[pathCol],
			Title:    field(record, "description"),
			Artist:   field(record, "artist"),
		})
	}
	return NewTable(records), nil
}
