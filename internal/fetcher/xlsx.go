package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ParseXLSX parses the first sheet of a workbook whose first row is the header.
// Short rows are padded; rows wider than the header are rejected.
func ParseXLSX(data []byte) ([]Record, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: sheet %q is empty", sheet.Name)
	}

	columns, err := normalizeHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var records []Record
	for i, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if len(cells) > len(columns) {
			return nil, eris.Errorf("xlsx: row %d has %d cells, header has %d", i+2, len(cells), len(columns))
		}
		if isBlank(cells) {
			continue
		}
		values := make([]string, len(columns))
		copy(values, cells)
		records = append(records, Record{Columns: columns, Values: values})
	}

	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
