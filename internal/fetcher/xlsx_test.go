package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXLSX_Basic(t *testing.T) {
	data := buildXLSX(t, [][]string{
		{"Address", "City", "State", "ZIP"},
		{"1 Main St", "Springfield", "IL", "62701"},
		{"2 Oak Ave", "Peoria", "IL"},
	})

	records, err := ParseXLSX(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Springfield", records[0].Get("City"))
	assert.Equal(t, "62701", records[0].Get("ZIP"))
	assert.Equal(t, "", records[1].Get("ZIP"))
	assert.Len(t, records[1].Values, 4)
}

func TestParseXLSX_WideRow(t *testing.T) {
	data := buildXLSX(t, [][]string{
		{"Address", "City"},
		{"1 Main St", "Springfield", "extra"},
	})

	_, err := ParseXLSX(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := ParseXLSX([]byte("Address,City\n"))
	assert.Error(t, err)
}
