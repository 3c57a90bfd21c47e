package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store/postgres"
)

var (
	seedTimeZones   = []string{"UTC", "Europe/London", "America/New_York", "Africa/Lagos", "Asia/Kolkata"}
	seedSpecialties = []string{
		"General Practice",
		"Cardiology",
		"Dermatology",
		"Pediatrics",
		"Orthopedics",
		"Neurology",
		"Psychiatry",
		"Ophthalmology",
	}
)

type seedCounts struct {
	Clinics  int
	Doctors  int
	Patients int
}

func seedCmd() *cobra.Command {
	var counts seedCounts
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fake clinics, doctors and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if counts.Clinics < 1 && counts.Doctors > 0 {
				return fmt.Errorf("--doctors needs at least one clinic")
			}
			cfg, log, err := bootstrap("carebook-seed")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = postgres.Close(db) }()

			gofakeit.Seed(time.Now().UnixNano())
			return seed(cmd.Context(), postgres.NewProfileRepo(db), counts, log)
		},
	}
	cmd.Flags().IntVar(&counts.Clinics, "clinics", 3, "clinics to create")
	cmd.Flags().IntVar(&counts.Doctors, "doctors", 10, "doctors to create, spread over the clinics")
	cmd.Flags().IntVar(&counts.Patients, "patients", 100, "patients to create")
	return cmd
}

type profileWriter interface {
	CreateClinic(ctx context.Context, c domain.Clinic) (domain.Clinic, error)
	CreateDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error)
	CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error)
}

func seed(ctx context.Context, w profileWriter, counts seedCounts, log *zap.Logger) error {
	clinics := make([]domain.Clinic, 0, counts.Clinics)
	for i := 0; i < counts.Clinics; i++ {
		c, err := w.CreateClinic(ctx, fakeClinic())
		if err != nil {
			return fmt.Errorf("create clinic: %w", err)
		}
		clinics = append(clinics, c)
	}
	log.Info("clinics seeded", zap.Int("count", len(clinics)))

	for i := 0; i < counts.Doctors; i++ {
		d := domain.Doctor{
			ClinicID:  clinics[i%len(clinics)].ID,
			FullName:  "Dr. " + gofakeit.Name(),
			Specialty: seedSpecialties[gofakeit.Number(0, len(seedSpecialties)-1)],
		}
		if _, err := w.CreateDoctor(ctx, d); err != nil {
			return fmt.Errorf("create doctor: %w", err)
		}
	}
	log.Info("doctors seeded", zap.Int("count", counts.Doctors))

	for i := 0; i < counts.Patients; i++ {
		p := domain.Patient{
			FullName: gofakeit.Name(),
			Email:    gofakeit.Email(),
			Phone:    gofakeit.Phone(),
		}
		if _, err := w.CreatePatient(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
	}
	log.Info("patients seeded", zap.Int("count", counts.Patients))
	return nil
}

func fakeClinic() domain.Clinic {
	open := gofakeit.Number(7, 9)
	return domain.Clinic{
		Name:      gofakeit.Company() + " Clinic",
		TimeZone:  seedTimeZones[gofakeit.Number(0, len(seedTimeZones)-1)],
		OpenTime:  fmt.Sprintf("%02d:00", open),
		CloseTime: fmt.Sprintf("%02d:00", open+gofakeit.Number(8, 10)),
	}
}
