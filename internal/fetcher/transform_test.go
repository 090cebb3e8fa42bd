package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_AbsentPayload(t *testing.T) {
	records := Transform(nil, FormatCSV)
	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestTransform_MalformedNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"Address,City\n1 Main St\n",
		"Address,City\n\"unterminated",
		"\x00\x01\x02",
		"a,a\n1,2\n",
	}
	for _, in := range inputs {
		records := Transform(&Payload{Body: []byte(in)}, FormatCSV)
		assert.NotNil(t, records)
		assert.Empty(t, records, "input %q", in)
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	data := "Address,City,State,ZIP\n"
	rows := []string{"1 Main St", "2 Oak Ave", "3 Elm St", "4 Pine Rd", "5 Birch Ln", "6 Cedar Ct", "7 Maple Dr"}
	for _, r := range rows {
		data += r + ",Springfield,IL,62701\n"
	}

	records := Transform(&Payload{Body: []byte(data)}, FormatCSV)
	require.Len(t, records, len(rows))
	for i, r := range rows {
		assert.Equal(t, r, records[i].Get("Address"))
	}
}

func TestTransform_XLSX(t *testing.T) {
	data := buildXLSX(t, [][]string{
		{"Address", "City", "State", "ZIP"},
		{"1 Main St", "Springfield", "IL", "62701"},
	})

	records := Transform(&Payload{Body: data}, FormatXLSX)
	require.Len(t, records, 1)
	assert.Equal(t, "IL", records[0].Get("State"))
}

func TestTransform_UnknownFormat(t *testing.T) {
	records := Transform(&Payload{Body: []byte("Address\nx\n")}, "ods")
	assert.Empty(t, records)
}
