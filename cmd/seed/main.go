package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-crm/internal/apperr"
	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/config"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/eventlog"
	"github.com/hackgods/clinic-crm/internal/lead"
	"github.com/hackgods/clinic-crm/internal/patient"
	redisclient "github.com/hackgods/clinic-crm/internal/redis"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

var interests = []string{
	lead.DefaultInterest,
	"Audiometría",
	"Adaptación de audífonos",
	"Revisión de audífonos",
	"Limpieza de oídos",
}

func main() {
	leadCount := flag.Int("leads", 200, "leads to create")
	patientCount := flag.Int("patients", 100, "patients to create")
	days := flag.Int("days", 5, "days ahead to fill with appointments")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	logger.Info("seed starting", "leads", *leadCount, "patients", *patientCount, "days", *days)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	events := eventlog.NewPgRecorder(pool, logger)
	appointments := appointment.NewService(
		appointment.NewPgRepository(pool),
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		appointment.NewCatalog(cfg.SlotCatalog),
		appointment.WithEvents(events),
		appointment.WithLogger(logger),
	)
	patients := patient.NewService(patient.NewPgRepository(pool), logger)
	leads := lead.NewService(lead.NewPgRepository(pool), appointments, events, nil, logger)
	appointments.AddStatusObserver(leads)

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(ctx, logger, patients, *patientCount); err != nil {
		logger.Error("seed patients", "error", err)
		os.Exit(1)
	}
	created, err := seedLeads(ctx, logger, leads, *leadCount)
	if err != nil {
		logger.Error("seed leads", "error", err)
		os.Exit(1)
	}
	if err := seedSchedule(ctx, logger, leads, appointments, created, *days); err != nil {
		logger.Error("seed schedule", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

func randomChannel() channel.Channel {
	all := channel.All()
	return all[gofakeit.Number(0, len(all)-1)]
}

func seedPatients(ctx context.Context, logger *logging.Logger, svc *patient.Service, count int) error {
	for i := 0; i < count; i++ {
		_, err := svc.Create(ctx, patient.CreateInput{
			Name:           gofakeit.Name(),
			Email:          gofakeit.Email(),
			Phone:          gofakeit.Phone(),
			Address:        gofakeit.Street(),
			City:           gofakeit.City(),
			DocumentNumber: gofakeit.DigitN(10),
			Channel:        string(randomChannel()),
			HearingLoss:    gofakeit.Bool(),
		})
		if err != nil {
			return err
		}
	}
	logger.Info("patients seeded", "count", count)
	return nil
}

func seedLeads(ctx context.Context, logger *logging.Logger, svc *lead.Service, count int) ([]*lead.Lead, error) {
	out := make([]*lead.Lead, 0, count)
	skipped := 0
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		phone := gofakeit.Phone()
		if dup, err := svc.FindDuplicate(ctx, email, phone, nil); err != nil {
			return nil, err
		} else if dup != nil {
			skipped++
			continue
		}

		interest := interests[gofakeit.Number(0, len(interests)-1)]
		l, err := svc.Create(ctx, lead.CreateInput{
			Name:                     gofakeit.Name(),
			Email:                    email,
			Phone:                    phone,
			Address:                  gofakeit.Street(),
			City:                     gofakeit.City(),
			UsesMedicatedHearingAids: gofakeit.Bool(),
			Channel:                  string(randomChannel()),
			Interest:                 interest,
			Notes:                    "Contactar por " + gofakeit.RandomString([]string{"teléfono", "correo", "WhatsApp"}),
		}, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	logger.Info("leads seeded", "count", len(out), "duplicates_skipped", skipped)
	return out, nil
}

// seedSchedule books leads into free catalog slots over the next days and
// walks some of them through the rest of the funnel.
func seedSchedule(ctx context.Context, logger *logging.Logger, leads *lead.Service, appts *appointment.Service, pending []*lead.Lead, days int) error {
	today := appointment.DateOnly(time.Now())
	booked, converted := 0, 0

	for d := 1; d <= days && len(pending) > 0; d++ {
		date := today.AddDate(0, 0, d)
		avail, err := appts.AvailableSlots(ctx, date)
		if err != nil {
			return err
		}
		for _, hhmm := range avail.AvailableSlots {
			if len(pending) == 0 {
				break
			}
			l := pending[0]
			pending = pending[1:]

			_, appt, err := leads.Schedule(ctx, l.ID, lead.ScheduleInput{
				Date:   appointment.FormatDate(date),
				Time:   hhmm,
				Reason: l.Interest,
			}, nil)
			if apperr.IsKind(err, apperr.KindConflict) {
				logger.Warn("slot taken while seeding", "date", appointment.FormatDate(date), "slot", hhmm)
				continue
			}
			if err != nil {
				return err
			}
			booked++

			switch gofakeit.Number(0, 3) {
			case 0:
				if _, err := appts.UpdateStatus(ctx, appt.ID, string(appointment.StatusCompleted)); err != nil {
					return err
				}
				if _, err := leads.ConvertToPatient(ctx, l.ID, lead.ConvertInput{HearingLoss: gofakeit.Bool()}); err != nil {
					return err
				}
				converted++
			case 1:
				if _, err := appts.UpdateStatus(ctx, appt.ID, string(appointment.StatusNoShow)); err != nil && !errors.Is(err, appointment.ErrStatusChanged) {
					return err
				}
			}
		}
	}

	logger.Info("schedule seeded", "appointments", booked, "converted", converted)
	return nil
}
