package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromSchema_EmptyRows(t *testing.T) {
	n, err := CopyFromSchema(context.TODO(), nil, "wnv", "Risk_Intersect", []string{"geom"}, [][]any{})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSchema_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"wnv", "Addresses"}, []string{"FULLADDR", "geom"}).WillReturnResult(2)

	rows := [][]any{{"1 Main St", []byte{0x01}}, {"2 Oak Ave", []byte{0x01}}}
	n, err := CopyFromSchema(context.Background(), mock, "wnv", "Addresses", []string{"FULLADDR", "geom"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"wnv", "Addresses"}, []string{"geom"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyFromSchema(context.Background(), mock, "wnv", "Addresses", []string{"geom"}, [][]any{{[]byte{0x01}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO wnv.Addresses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_EmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace.database_url")
}
