package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-crm/internal/apperr"
	"github.com/hackgods/clinic-crm/internal/channel"
	redisclient "github.com/hackgods/clinic-crm/internal/redis"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

type fixture struct {
	svc  *Service
	repo *InMemoryRepository
	mr   *miniredis.Miniredis
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewInMemoryRepository()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	svc := NewService(repo, redisclient.NewRedisSlotLocker(client, 2*time.Second), testCatalog, opts...)
	return &fixture{svc: svc, repo: repo, mr: mr}
}

func walkIn(date, hhmm string) CreateInput {
	return CreateInput{
		Date:         date,
		Time:         hhmm,
		ContactName:  "Rosa Díaz",
		ContactEmail: "Rosa@Mail.com",
	}
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []Status
	err   error
}

func (o *recordingObserver) AppointmentStatusChanged(ctx context.Context, appt *Appointment, from Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, from, appt.Status)
	return o.err
}

func TestCreateThenSlotIsBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "rosa@mail.com", appt.ContactEmail)
	assert.Equal(t, channel.Default, appt.Channel)
	assert.Equal(t, mustDate(t, "2025-03-10"), appt.Date)

	avail, err := f.svc.AvailableSlots(ctx, mustDate(t, "2025-03-10"))
	require.NoError(t, err)
	assert.NotContains(t, avail.AvailableSlots, "09:00")
	assert.Equal(t, []string{"09:00"}, avail.BookedSlots)
	assert.Equal(t, "2025-03-10", avail.Date)
}

func TestAvailableSlotsOnEmptyDay(t *testing.T) {
	f := newFixture(t)

	avail, err := f.svc.AvailableSlots(context.Background(), mustDate(t, "2025-03-11"))
	require.NoError(t, err)
	assert.Equal(t, []string(testCatalog), avail.AvailableSlots)
	assert.Empty(t, avail.BookedSlots)
}

func TestCreateTruncatesTimestampAndPadsTime(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Create(context.Background(), walkIn("2025-03-10T18:30:00Z", "9:30"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustDate(t, "2025-03-10"), appt.Date)
	assert.Equal(t, "09:30", appt.Time)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"time outside catalog", walkIn("2025-03-10", "13:00"), ErrSlotNotOffered},
		{"bad date", walkIn("March 10", "09:00"), ErrInvalidDate},
		{"walk-in without contact", CreateInput{Date: "2025-03-10", Time: "09:00", ContactName: "Ana"}, ErrContactRequired},
		{"walk-in without name", CreateInput{Date: "2025-03-10", Time: "09:00", ContactPhone: "600111222"}, ErrContactRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in, nil)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}

	_, err := f.svc.Create(ctx, CreateInput{Time: "09:00"}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateForPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := uuid.New()
	_, err := f.svc.Create(ctx, CreateInput{Date: "2025-03-10", Time: "09:00", PatientID: &missing}, nil)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	known := uuid.New()
	f.repo.AddPatient(known)
	creator := uuid.New()
	appt, err := f.svc.Create(ctx, CreateInput{Date: "2025-03-10", Time: "09:00", PatientID: &known, Channel: "sitio web"}, &creator)
	require.NoError(t, err)
	assert.Equal(t, known, *appt.PatientID)
	assert.Equal(t, creator, *appt.CreatedByID)
	assert.Equal(t, channel.Website, appt.Channel)
}

func TestCreateRejectsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestCreateWhileSlotLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set(redisclient.SlotKey("2025-03-10", "09:00"), "someone-else"))

	_, err := f.svc.Create(context.Background(), walkIn("2025-03-10", "09:00"), nil)
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestConcurrentBookingsForOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, walkIn("2025-03-10", "10:00"), nil)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrSlotAlreadyBooked) && !errors.Is(err, ErrSlotBeingBooked) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	booked, err := f.repo.BookedTimes(ctx, mustDate(t, "2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, booked)
}

func TestCancelFreesSlotAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-10")

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "08:30"), nil)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	avail, err := f.svc.AvailableSlots(ctx, date)
	require.NoError(t, err)
	assert.Contains(t, avail.AvailableSlots, "08:30")

	_, err = f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	again, err := f.svc.AvailableSlots(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, avail, again)

	_, err = f.svc.Create(ctx, walkIn("2025-03-10", "08:30"), nil)
	assert.NoError(t, err)
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	done, err := f.svc.UpdateStatus(ctx, appt.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "CANCELLED")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	same, err := f.svc.UpdateStatus(ctx, appt.ID, "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, same.Status)

	patient, err := f.svc.UpdateStatus(ctx, appt.ID, "PATIENT")
	require.NoError(t, err)
	assert.Equal(t, StatusPatient, patient.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "CONFIRMED")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	stored, err := f.svc.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPatient, stored.Status)
}

func TestUpdateStatusRejectsUnknownAndReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "ATTENDED")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "RESCHEDULED")
	assert.ErrorIs(t, err, ErrRescheduleNeedsSlot)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), "COMPLETED")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestObserversSeeCommittedTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obs := &recordingObserver{err: errors.New("lead store down")}
	f.svc.AddStatusObserver(obs)

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "NO_SHOW")
	require.NoError(t, err, "observer failures are logged, not returned")

	assert.Equal(t, []Status{StatusConfirmed, StatusNoShow}, obs.calls)
}

func TestRescheduleLinksReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	original, replacement, err := f.svc.Reschedule(ctx, appt.ID, RescheduleInput{Date: "2025-03-12", Time: "10:00"}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusRescheduled, original.Status)
	require.NotNil(t, original.RescheduledToID)
	assert.Equal(t, replacement.ID, *original.RescheduledToID)
	assert.Equal(t, StatusConfirmed, replacement.Status)
	assert.Equal(t, appt.ContactEmail, replacement.ContactEmail)
	assert.Equal(t, "10:00", replacement.Time)

	// the superseded appointment still counts as booked
	avail, err := f.svc.AvailableSlots(ctx, mustDate(t, "2025-03-10"))
	require.NoError(t, err)
	assert.Contains(t, avail.BookedSlots, "09:00")

	_, _, err = f.svc.Reschedule(ctx, appt.ID, RescheduleInput{Date: "2025-03-13", Time: "10:00"}, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestRescheduleIntoBookedSlotLeavesOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, walkIn("2025-03-10", "09:30"), nil)
	require.NoError(t, err)

	_, _, err = f.svc.Reschedule(ctx, appt.ID, RescheduleInput{Date: "2025-03-10", Time: "09:30"}, nil)
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	stored, err := f.svc.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Nil(t, stored.RescheduledToID)
}

func TestUpdateNormalizesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Create(ctx, walkIn("2025-03-10", "09:00"), nil)
	require.NoError(t, err)

	email := "NEW@Mail.com"
	ch := "renovación"
	notes := "bring previous audiogram"
	updated, err := f.svc.Update(ctx, appt.ID, UpdateInput{ContactEmail: &email, Channel: &ch, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "new@mail.com", updated.ContactEmail)
	assert.Equal(t, channel.Renewal, updated.Channel)
	assert.Equal(t, notes, updated.Notes)

	bad := "not-an-email"
	_, err = f.svc.Update(ctx, appt.ID, UpdateInput{ContactEmail: &bad})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, hhmm := range []string{"08:00", "08:30", "09:00"} {
		_, err := f.svc.Create(ctx, walkIn("2025-03-10", hhmm), nil)
		require.NoError(t, err)
	}
	other, err := f.svc.Create(ctx, walkIn("2025-03-11", "08:00"), nil)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, other.ID)
	require.NoError(t, err)
	early, err := f.svc.Create(ctx, walkIn("2025-03-09", "09:30"), nil)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all.Appointments, 5)
	assert.Equal(t, early.ID, all.Appointments[0].ID)
	assert.Equal(t, "2025-03-10 08:00", all.Appointments[1].SlotKey())
	assert.Equal(t, "2025-03-10 09:00", all.Appointments[3].SlotKey())
	assert.Equal(t, other.ID, all.Appointments[4].ID)

	day := mustDate(t, "2025-03-10")
	res, err := f.svc.List(ctx, ListFilter{Date: &day, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pagination.Total)
	assert.Equal(t, 2, res.Pagination.Pages)
	require.Len(t, res.Appointments, 2)
	assert.Equal(t, "08:00", res.Appointments[0].Time)

	res, err = f.svc.List(ctx, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	require.Len(t, res.Appointments, 1)
	assert.Equal(t, other.ID, res.Appointments[0].ID)

	_, err = f.svc.List(ctx, ListFilter{Status: "LATE"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatsByPeriod(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	a, err := f.svc.Create(ctx, walkIn("2025-03-10", "08:00"), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, walkIn("2025-03-10", "08:30"), nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, a.ID, "NO_SHOW")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, walkIn("2025-01-05", "09:00"), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, walkIn("2025-04-01", "09:00"), nil)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "month", stats.Period)
	assert.Equal(t, 3, stats.Total, "dated from 2025-02-15 on, future bookings included")
	assert.Equal(t, 2, stats.Confirmed)
	assert.Equal(t, 1, stats.NoShow)

	stats, err = f.svc.Stats(ctx, "day")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)

	stats, err = f.svc.Stats(ctx, "year")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)

	stats, err = f.svc.Stats(ctx, "decade")
	require.NoError(t, err)
	assert.Equal(t, "all", stats.Period)
	assert.Equal(t, 4, stats.Total)
}
