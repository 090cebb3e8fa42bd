package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_SingleRecord(t *testing.T) {
	records, err := ParseCSV([]byte("Address,City,State,ZIP\n1 Main St,Springfield,IL,62701\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, map[string]string{
		"Address": "1 Main St",
		"City":    "Springfield",
		"State":   "IL",
		"ZIP":     "62701",
	}, records[0].Map())
	assert.Equal(t, []string{"Address", "City", "State", "ZIP"}, records[0].Columns)
}

func TestParseCSV_PreservesOrder(t *testing.T) {
	data := "Address,City,State,ZIP\n" +
		"3 Elm St,Urbana,IL,61801\n" +
		"1 Main St,Springfield,IL,62701\n" +
		"\"2 Oak Ave, Apt 4\",Peoria,IL,61602\n"

	records, err := ParseCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3 Elm St", records[0].Get("Address"))
	assert.Equal(t, "1 Main St", records[1].Get("Address"))
	assert.Equal(t, "2 Oak Ave, Apt 4", records[2].Get("Address"))
	assert.Same(t, &records[0].Columns[0], &records[2].Columns[0])
}

func TestParseCSV_StripsBOMAndTrimsHeader(t *testing.T) {
	records, err := ParseCSV([]byte("\ufeffAddress , City\n1 Main St,Springfield\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1 Main St", records[0].Get("Address"))
	assert.Equal(t, "Springfield", records[0].Get("City"))
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	records, err := ParseCSV([]byte("Address,City,State,ZIP\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"ragged row", "Address,City\n1 Main St,Springfield,IL\n"},
		{"short row", "Address,City,State\n1 Main St\n"},
		{"bad quote", "Address,City\n\"1 Main St,Springfield\n"},
		{"duplicate header", "Address,Address\na,b\n"},
		{"blank header", "Address,,ZIP\na,b,c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestRecordGet_MissingColumn(t *testing.T) {
	r := Record{Columns: []string{"Address"}, Values: []string{"1 Main St"}}
	assert.Equal(t, "", r.Get("ZIP"))
}
