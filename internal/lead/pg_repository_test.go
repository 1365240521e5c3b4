package lead

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/patient"
)

var leadCols = []string{
	"id", "name", "email", "phone", "address", "city", "uses_medicated_hearing_aids", "channel",
	"interest", "notes", "status", "referring_doctor", "social_network", "offline_campaign", "referred_by",
	"manual_booking_type", "appointment_id", "patient_id", "created_by_id", "created_at", "updated_at",
}

var patientCols = []string{
	"id", "name", "email", "phone", "address", "city", "document_number",
	"uses_medicated_hearing_aids", "channel", "hearing_loss", "notes", "lead_id", "created_at", "updated_at",
}

func leadRow(l Lead) *pgxmock.Rows {
	return pgxmock.NewRows(leadCols).AddRow(
		l.ID, l.Name, l.Email, l.Phone, l.Address, l.City, l.UsesMedicatedHearingAids, l.Channel,
		l.Interest, l.Notes, l.Status, l.ReferringDoctor, l.SocialNetwork, l.OfflineCampaign, l.ReferredBy,
		l.ManualBookingType, l.AppointmentID, l.PatientID, l.CreatedByID, l.CreatedAt, l.UpdatedAt,
	)
}

func patientRow(p patient.Patient) *pgxmock.Rows {
	return pgxmock.NewRows(patientCols).AddRow(
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.City, p.DocumentNumber,
		p.UsesMedicatedHearingAids, p.Channel, p.HearingLoss, p.Notes, p.LeadID, p.CreatedAt, p.UpdatedAt,
	)
}

func sampleLead() Lead {
	now := time.Now().UTC()
	return Lead{
		ID:        uuid.New(),
		Name:      "Julio",
		Email:     "julio@mail.com",
		Phone:     "600111222",
		Channel:   channel.Default,
		Interest:  DefaultInterest,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func buildPatient(l *Lead) *patient.Patient {
	id := l.ID
	return &patient.Patient{Name: l.Name, Email: l.Email, Phone: l.Phone, Channel: l.Channel, LeadID: &id}
}

func TestPgConvertCommitsPatientAndLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := sampleLead()
	p := patient.Patient{ID: uuid.New(), Name: l.Name, Email: l.Email, Channel: l.Channel, LeadID: &l.ID}
	converted := l
	converted.Status = StatusPatient
	converted.PatientID = &p.ID

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .* FROM leads WHERE id = \\$1 FOR UPDATE").WithArgs(l.ID).WillReturnRows(leadRow(l))
	mock.ExpectQuery("INSERT INTO patients").WillReturnRows(patientRow(p))
	mock.ExpectQuery("UPDATE leads SET status = \\$2, patient_id = \\$3").
		WithArgs(l.ID, StatusPatient, p.ID).
		WillReturnRows(leadRow(converted))
	mock.ExpectCommit()

	conv, err := NewPgRepository(mock).ConvertToPatient(context.Background(), l.ID, buildPatient)
	require.NoError(t, err)
	assert.Equal(t, StatusPatient, conv.Lead.Status)
	assert.Equal(t, p.ID, conv.Patient.ID)
	assert.False(t, conv.AlreadyConverted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConvertRollsBackPatientWhenLeadWriteFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := sampleLead()
	p := patient.Patient{ID: uuid.New(), Name: l.Name, Email: l.Email, Channel: l.Channel, LeadID: &l.ID}
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .* FROM leads WHERE id = \\$1 FOR UPDATE").WithArgs(l.ID).WillReturnRows(leadRow(l))
	mock.ExpectQuery("INSERT INTO patients").WillReturnRows(patientRow(p))
	mock.ExpectQuery("UPDATE leads SET status").WillReturnError(boom)
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).ConvertToPatient(context.Background(), l.ID, buildPatient)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConvertAlreadyConverted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := sampleLead()
	p := patient.Patient{ID: uuid.New(), Name: l.Name, Email: l.Email, Channel: l.Channel, LeadID: &l.ID}
	l.Status = StatusPatient
	l.PatientID = &p.ID

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .* FROM leads WHERE id = \\$1 FOR UPDATE").WithArgs(l.ID).WillReturnRows(leadRow(l))
	mock.ExpectQuery("(?s)SELECT .* FROM patients WHERE id = \\$1").WithArgs(p.ID).WillReturnRows(patientRow(p))
	mock.ExpectCommit()

	conv, err := NewPgRepository(mock).ConvertToPatient(context.Background(), l.ID, buildPatient)
	require.NoError(t, err)
	assert.True(t, conv.AlreadyConverted)
	assert.Equal(t, p.ID, conv.Patient.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConvertMissingLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).WillReturnRows(pgxmock.NewRows(leadCols))
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).ConvertToPatient(context.Background(), id, buildPatient)
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindDuplicatePassesNormalizedKeys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := sampleLead()
	exclude := uuid.New()
	mock.ExpectQuery("regexp_replace\\(phone").
		WithArgs("julio@mail.com", "600111222", &exclude).
		WillReturnRows(leadRow(l))

	found, err := NewPgRepository(mock).FindDuplicate(context.Background(), DuplicateQuery{
		Email:     "julio@mail.com",
		Phone:     "600111222",
		ExcludeID: &exclude,
	})
	require.NoError(t, err)
	assert.Equal(t, l.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM leads").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewPgRepository(mock).Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSetStatusFrozenLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE leads SET status = \\$2, updated_at = now\\(\\)\\s+WHERE id = \\$1 AND status <> 'PACIENTE'").
		WithArgs(id, StatusContacted).
		WillReturnRows(pgxmock.NewRows(leadCols))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = NewPgRepository(mock).SetStatus(context.Background(), id, StatusContacted)
	assert.ErrorIs(t, err, ErrLeadFrozen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSetStatusMissingLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE leads SET status").WithArgs(id, StatusLost).WillReturnRows(pgxmock.NewRows(leadCols))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewPgRepository(mock).SetStatus(context.Background(), id, StatusLost)
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMoveAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := sampleLead()
	from, to := uuid.New(), uuid.New()
	l.AppointmentID = &to
	mock.ExpectQuery("UPDATE leads SET appointment_id = \\$2, updated_at = now\\(\\)\\s+WHERE appointment_id = \\$1").
		WithArgs(from, to).
		WillReturnRows(leadRow(l))

	moved, err := NewPgRepository(mock).MoveAppointment(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, to, *moved.AppointmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}
