package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV parses a comma-separated payload whose first row is the header.
// Every data row must have exactly as many fields as the header.
func ParseCSV(data []byte) ([]Record, error) {
	// Strip a UTF-8 byte order mark; published sheets often carry one.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty payload")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		records = append(records, Record{Columns: columns, Values: row})
	}

	return records, nil
}

// normalizeHeader trims header names and rejects empty or duplicate columns.
func normalizeHeader(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, eris.Errorf("header: column %d has no name", i+1)
		}
		if seen[name] {
			return nil, eris.Errorf("header: duplicate column %q", name)
		}
		seen[name] = true
		columns[i] = name
	}
	return columns, nil
}
