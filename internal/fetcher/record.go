package fetcher

// Record is one data row keyed by the header of its source. All records from
// one parse share the same Columns slice.
type Record struct {
	Columns []string
	Values  []string
}

// Get returns the value for column, or "" when the column is absent.
func (r Record) Get(column string) string {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i]
		}
	}
	return ""
}

// Map returns the record as a column → value map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.Columns))
	for i, c := range r.Columns {
		if i < len(r.Values) {
			m[c] = r.Values[i]
		}
	}
	return m
}
