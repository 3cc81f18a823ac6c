package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	apptID := uuid.New()
	recID := uuid.New()
	mock.ExpectQuery("INSERT INTO reminder_records").
		WithArgs(pgxmock.AnyArg(), apptID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(recID))

	id, err := store.Upsert(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, recID, id)
}

func TestMarkSent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	apptID := uuid.New()
	sentAt := time.Now()
	mock.ExpectExec("UPDATE reminder_records").
		WithArgs("wamid.1", sentAt, apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkSent(context.Background(), apptID, "wamid.1", sentAt))

	mock.ExpectExec("UPDATE reminder_records").
		WithArgs("wamid.2", sentAt, apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.Error(t, store.MarkSent(context.Background(), apptID, "wamid.2", sentAt))
}

func TestMarkFailedKeepsErrorVerbatim(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	apptID := uuid.New()
	mock.ExpectExec("UPDATE reminder_records").
		WithArgs("template api: send template: status 500: rate limited", apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.MarkFailed(context.Background(), apptID,
		"template api: send template: status 500: rate limited")
	require.NoError(t, err)
}

func TestUpdateByExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	mock.ExpectExec("UPDATE reminder_records").
		WithArgs("delivered", "wamid.1", []string{"sent"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	matched, err := store.UpdateByExternalID(context.Background(), "wamid.1", StatusDelivered)
	require.NoError(t, err)
	assert.True(t, matched)

	mock.ExpectExec("UPDATE reminder_records").
		WithArgs("read", "wamid.1", []string{"sent", "delivered"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	matched, err = store.UpdateByExternalID(context.Background(), "wamid.1", StatusRead)
	require.NoError(t, err)
	assert.True(t, matched)

	// Quick-reply outcomes never travel through the receipt path.
	matched, err = store.UpdateByExternalID(context.Background(), "wamid.1", StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestGetByAppointmentMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	apptID := uuid.New()
	mock.ExpectQuery("SELECT id, appointment_id").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "appointment_id", "status", "sent_at", "retry_count",
			"external_message_id", "error_message", "created_at",
		}))

	rec, err := store.GetByAppointment(context.Background(), apptID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewStore(mock)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()
	mock.ExpectQuery("SELECT").
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows([]string{"pending", "sent", "failed", "confirmed", "cancelled"}).
			AddRow(1, 10, 2, 4, 1))

	stats, err := store.GetStats(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Pending: 1, Sent: 10, Failed: 2, Confirmed: 4, Cancelled: 1}, stats)
}
