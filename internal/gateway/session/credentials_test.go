package session

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgCredentialStoreRoundtrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPgCredentialStore(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO session_credentials").
		WithArgs("session", "cedin-automation", []byte("opaque-blob")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Put(ctx, "session", "cedin-automation", []byte("opaque-blob")))

	mock.ExpectQuery("SELECT data FROM session_credentials").
		WithArgs("session", "cedin-automation").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("opaque-blob")))
	data, err := store.Get(ctx, "session", "cedin-automation")
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque-blob"), data)

	mock.ExpectExec("DELETE FROM session_credentials").
		WithArgs("session", "cedin-automation").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Delete(ctx, "session", "cedin-automation"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCredentialStoreGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPgCredentialStore(mock)

	mock.ExpectQuery("SELECT data FROM session_credentials").
		WithArgs("keys", "prekey-17").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	data, err := store.Get(context.Background(), "keys", "prekey-17")
	require.NoError(t, err)
	assert.Nil(t, data)
}
