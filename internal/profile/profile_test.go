package profile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/lead"
	"github.com/hackgods/clinic-crm/internal/patient"
	redisclient "github.com/hackgods/clinic-crm/internal/redis"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

type fixture struct {
	svc      *Service
	apptRepo *appointment.InMemoryRepository
	appts    *appointment.Service
	leads    *lead.Service
	patients *patient.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logging.Discard()
	apptRepo := appointment.NewInMemoryRepository()
	appts := appointment.NewService(
		apptRepo,
		redisclient.NewRedisSlotLocker(client, 2*time.Second),
		appointment.Catalog{"09:00", "09:30", "10:00"},
		appointment.WithLogger(logger),
	)
	patientRepo := patient.NewInMemoryRepository()
	patients := patient.NewService(patientRepo, logger)
	leads := lead.NewService(lead.NewInMemoryRepository(patientRepo), appts, nil, nil, logger)

	return &fixture{
		svc:      NewService(patients, leads, appts),
		apptRepo: apptRepo,
		appts:    appts,
		leads:    leads,
		patients: patients,
	}
}

func TestProfileOfConvertedLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.leads.Create(ctx, lead.CreateInput{Name: "Marta Gil", Email: "marta@mail.com", Phone: "600222333"}, nil)
	require.NoError(t, err)
	conv, err := f.leads.ConvertToPatient(ctx, l.ID, lead.ConvertInput{})
	require.NoError(t, err)
	patientID := conv.Patient.ID
	f.apptRepo.AddPatient(patientID)

	for day := 10; day <= 13; day++ {
		for _, hhmm := range []string{"09:00", "09:30", "10:00"} {
			_, err := f.appts.Create(ctx, appointment.CreateInput{
				Date:      fmt.Sprintf("2025-03-%02d", day),
				Time:      hhmm,
				PatientID: &patientID,
			}, nil)
			require.NoError(t, err)
		}
	}

	prof, err := f.svc.Get(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, patientID, prof.Patient.ID)
	require.NotNil(t, prof.Lead)
	assert.Equal(t, l.ID, prof.Lead.ID)
	assert.Equal(t, lead.StatusPatient, prof.Lead.Status)

	require.Len(t, prof.RecentAppointments, RecentAppointments)
	assert.Equal(t, "2025-03-13 10:00", prof.RecentAppointments[0].SlotKey())
	assert.Equal(t, "2025-03-10 10:00", prof.RecentAppointments[9].SlotKey())
}

func TestProfileOfDirectPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.patients.Create(ctx, patient.CreateInput{Name: "Ana", Email: "ana@mail.com"})
	require.NoError(t, err)

	prof, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, prof.Lead)
	assert.NotNil(t, prof.RecentAppointments)
	assert.Empty(t, prof.RecentAppointments)
}

func TestProfileUnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}
