package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

// SeedPassword is shared by every seeded account so the simulator can log in.
const SeedPassword = "seed-password"

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type seedOptions struct {
	facilities         int
	doctorsPerFacility int
	privateDoctors     int
	patients           int
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Populate the database with fake facilities, doctors and patients",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.facilities, "facilities", 5, "facilities to create, each with its own admin")
	cmd.Flags().IntVar(&opts.doctorsPerFacility, "doctors-per-facility", 4, "doctors created by each facility admin")
	cmd.Flags().IntVar(&opts.privateDoctors, "private-doctors", 5, "self-registered doctors without a facility")
	cmd.Flags().IntVar(&opts.patients, "patients", 200, "patient accounts")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("seeding needs STORE_DRIVER=%s", config.StoreDriverPostgres)
	}
	telemetry.InitLogger("clinic-booking-seed", cfg.Env)
	log.Info().Msg("seed starting")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)
	s := &seeder{
		auth:      auth.NewService(repo, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)),
		directory: appointment.NewDirectory(repo),
	}
	gofakeit.Seed(time.Now().UnixNano())

	if err := s.facilities(ctx, opts.facilities, opts.doctorsPerFacility); err != nil {
		return fmt.Errorf("seed facilities: %w", err)
	}
	if err := s.privateDoctors(ctx, opts.privateDoctors); err != nil {
		return fmt.Errorf("seed private doctors: %w", err)
	}
	if err := s.patients(ctx, opts.patients); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	log.Info().Str("password", SeedPassword).Msg("seed complete")
	return nil
}

type seeder struct {
	auth      *auth.Service
	directory *appointment.Directory
}

// email makes addresses unique across runs; gofakeit alone repeats quickly.
func (s *seeder) email(prefix string) string {
	return strings.ToLower(fmt.Sprintf("%s.%s@seed.local", prefix, gofakeit.LetterN(10)))
}

func (s *seeder) register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error) {
	in.Password = SeedPassword
	return s.auth.Register(ctx, in)
}

func (s *seeder) facilities(ctx context.Context, count, doctors int) error {
	log.Info().Int("count", count).Msg("seeding facilities")

	types := []appointment.FacilityType{appointment.FacilityClinic, appointment.FacilityHospital}
	suffix := map[appointment.FacilityType]string{
		appointment.FacilityClinic:   "Clinic",
		appointment.FacilityHospital: "Hospital",
	}

	for i := 0; i < count; i++ {
		admin, err := s.register(ctx, auth.RegisterInput{
			FullName: gofakeit.Name(),
			Email:    s.email("admin"),
			Role:     string(appointment.RoleFacilityAdmin),
		})
		if err != nil {
			return err
		}

		actor := appointment.Actor{UserID: admin.User.ID, Role: appointment.RoleFacilityAdmin}
		kind := types[i%len(types)]
		facility, err := s.directory.CreateFacility(ctx, actor, appointment.CreateFacilityInput{
			Name:    gofakeit.Company() + " " + suffix[kind],
			Type:    string(kind),
			Address: gofakeit.Street() + ", " + gofakeit.City(),
			Phone:   gofakeit.Phone(),
		})
		if err != nil {
			return err
		}
		actor.FacilityID = &facility.ID

		for j := 0; j < doctors; j++ {
			if _, err := s.directory.CreateDoctor(ctx, actor, appointment.CreateDoctorInput{
				FullName:  "Dr. " + gofakeit.Name(),
				Specialty: specialties[gofakeit.Number(0, len(specialties)-1)],
			}); err != nil {
				return err
			}
		}

		log.Info().
			Str("facility_id", facility.ID.String()).
			Str("admin_email", admin.User.Email).
			Int("doctors", doctors).
			Msg("facility seeded")
	}
	return nil
}

func (s *seeder) privateDoctors(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding private doctors")

	for i := 0; i < count; i++ {
		if _, err := s.register(ctx, auth.RegisterInput{
			FullName:  "Dr. " + gofakeit.Name(),
			Email:     s.email("doctor"),
			Role:      string(appointment.RoleDoctor),
			Specialty: specialties[gofakeit.Number(0, len(specialties)-1)],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) patients(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		if _, err := s.register(ctx, auth.RegisterInput{
			FullName: gofakeit.Name(),
			Email:    s.email("patient"),
		}); err != nil {
			return err
		}
		if (i+1)%50 == 0 {
			log.Info().Int("seeded", i+1).Int("total", count).Msg("patients progress")
		}
	}
	return nil
}
