package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-crm/internal/channel"
)

var appointmentCols = []string{
	"id", "date", "time", "status", "reason", "channel", "notes", "consultation_type",
	"patient_id", "contact_name", "contact_email", "contact_phone", "rescheduled_to_id", "created_by_id",
	"created_at", "updated_at",
}

func appointmentRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		a.ID, a.Date, a.Time, a.Status, a.Reason, a.Channel, a.Notes, a.ConsultationType,
		a.PatientID, a.ContactName, a.ContactEmail, a.ContactPhone, a.RescheduledToID, a.CreatedByID,
		a.CreatedAt, a.UpdatedAt,
	)
}

func sampleAppointment() Appointment {
	now := time.Now().UTC()
	return Appointment{
		ID:          uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Time:        "09:00",
		Status:      StatusConfirmed,
		Channel:     channel.Default,
		ContactName: "Rosa",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPgBookedTimesExcludesCancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT time\\s+FROM appointments\\s+WHERE date = \\$1 AND status <> \\$2").
		WithArgs(date, StatusCancelled).
		WillReturnRows(pgxmock.NewRows([]string{"time"}).AddRow("08:00").AddRow("09:30"))

	booked, err := NewPgRepository(mock).BookedTimes(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:30"}, booked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateMapsActiveSlotViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotConstraint})

	a := sampleAppointment()
	_, err = NewPgRepository(mock).Create(context.Background(), &a)
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusCompareAndSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	done := a
	done.Status = StatusCompleted

	mock.ExpectQuery("UPDATE appointments\\s+SET status = \\$3").
		WithArgs(a.ID, StatusConfirmed, StatusCompleted).
		WillReturnRows(appointmentRow(done))
	mock.ExpectQuery("UPDATE appointments\\s+SET status = \\$3").
		WithArgs(a.ID, StatusConfirmed, StatusCancelled).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	repo := NewPgRepository(mock)
	got, err := repo.UpdateStatus(context.Background(), a.ID, StatusConfirmed, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = repo.UpdateStatus(context.Background(), a.ID, StatusConfirmed, StatusCancelled)
	assert.ErrorIs(t, err, ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRescheduleCommitsBothWrites(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	original := sampleAppointment()
	next := sampleAppointment()
	next.Time = "10:00"

	moved := original
	moved.Status = StatusRescheduled
	moved.RescheduledToID = &next.ID

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").WillReturnRows(appointmentRow(next))
	mock.ExpectQuery("UPDATE appointments\\s+SET status = \\$3, rescheduled_to_id = \\$4").
		WithArgs(original.ID, StatusConfirmed, StatusRescheduled, next.ID).
		WillReturnRows(appointmentRow(moved))
	mock.ExpectCommit()

	gotOriginal, gotNext, err := NewPgRepository(mock).Reschedule(context.Background(), original.ID, StatusConfirmed, &next)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, gotOriginal.Status)
	assert.Equal(t, next.ID, gotNext.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRescheduleRollsBackWhenOriginalMoved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	original := sampleAppointment()
	next := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").WillReturnRows(appointmentRow(next))
	mock.ExpectQuery("UPDATE appointments").WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectRollback()

	_, _, err = NewPgRepository(mock).Reschedule(context.Background(), original.ID, StatusConfirmed, &next)
	assert.ErrorIs(t, err, ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\)").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(StatusConfirmed, 4).
			AddRow(StatusNoShow, 1))

	counts, err := NewPgRepository(mock).CountByStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusConfirmed: 4, StatusNoShow: 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountByStatusFiltersOnAppointmentDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("(?s)FROM appointments\\s+WHERE \\$1::date IS NULL OR date >= \\$1").
		WithArgs(&since).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).AddRow(StatusConfirmed, 2))

	counts, err := NewPgRepository(mock).CountByStatus(context.Background(), &since)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusConfirmed])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListOrdersByDateThenTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY date ASC, time ASC").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 50, 0).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	list, total, err := NewPgRepository(mock).List(context.Background(), ListFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecentForPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	patientID := uuid.New()
	a.PatientID = &patientID
	mock.ExpectQuery("(?s)WHERE patient_id = \\$1\\s+ORDER BY date DESC, time DESC\\s+LIMIT \\$2").
		WithArgs(patientID, 10).
		WillReturnRows(appointmentRow(a))

	items, err := NewPgRepository(mock).RecentForPatient(context.Background(), patientID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
