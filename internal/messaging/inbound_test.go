package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedinhealth/clinic-automation/internal/patient"
)

type fakeResolver struct {
	known     *patient.Patient
	leads     int
	lookups   int
	lastQuery string
}

func (f *fakeResolver) FindByPhoneSuffix(_ context.Context, senderID string) (*patient.Patient, error) {
	f.lookups++
	f.lastQuery = senderID
	return f.known, nil
}

func (f *fakeResolver) CreateLead(_ context.Context, senderID string) (*patient.Patient, error) {
	f.leads++
	return &patient.Patient{ID: uuid.New(), FirstName: "Contacto", IsLead: true}, nil
}

func TestInboundLogKnownPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	known := &patient.Patient{ID: uuid.New(), FirstName: "Ana"}
	resolver := &fakeResolver{known: known}
	logger := NewInboundLogger(resolver, NewStore(mock), nil)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	expectConversationUpsert(mock, known.ID, uuid.New())
	expectAppend(mock, 1)

	err = logger.Log(context.Background(), InboundEvent{
		SenderID:   "5491144445555@s.whatsapp.net",
		ExternalID: "ext-1",
		Text:       "hola, quería confirmar el turno",
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resolver.leads)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInboundLogCreatesLeadForUnknownSender(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	resolver := &fakeResolver{}
	logger := NewInboundLogger(resolver, NewStore(mock), nil)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ext-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(conversationRows(Conversation{
			ID: uuid.New(), PatientID: uuid.New(), Channel: ChannelWhatsApp, Status: ConversationOpen,
		}))
	expectAppend(mock, 1)

	err = logger.Log(context.Background(), InboundEvent{
		SenderID:   "5491166667777",
		ExternalID: "ext-2",
		Text:       "quisiera pedir un turno",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.leads)
}

func TestInboundLogDropsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	resolver := &fakeResolver{}
	logger := NewInboundLogger(resolver, NewStore(mock), nil)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err = logger.Log(context.Background(), InboundEvent{
		SenderID:   "5491144445555",
		ExternalID: "ext-1",
		Text:       "hola",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resolver.lookups)
}

func TestInboundLogIgnoresSelfAndNonPhoneSenders(t *testing.T) {
	resolver := &fakeResolver{}
	logger := NewInboundLogger(resolver, nil, nil)

	require.NoError(t, logger.Log(context.Background(), InboundEvent{
		SenderID: "5491144445555",
		FromSelf: true,
		Text:     "mensaje propio",
	}))
	require.NoError(t, logger.Log(context.Background(), InboundEvent{
		SenderID: "status@broadcast-sin-digitos",
		Text:     "difusión",
	}))
	assert.Equal(t, 0, resolver.lookups)
}
