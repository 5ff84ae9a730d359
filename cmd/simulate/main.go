package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/schedule"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

// SimConfig drives a booking race against a running api-server: every round
// a group of patients tries to book the same doctor minute at once. The
// server's RATE_LIMIT must allow Racers*Rounds bookings from one address.
type SimConfig struct {
	APIBaseURL string
	Racers     int
	Rounds     int
	DoctorID   string // empty picks the first listed doctor
	DaysAhead  int
	Timeout    time.Duration
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Register     OperationMetrics
	Availability OperationMetrics
	Booking      OperationMetrics
}

// RoundResult is the outcome of one race for a single slot.
type RoundResult struct {
	Slot      string
	Created   int
	Conflicts int
	Errors    int
}

// Violated reports whether the round broke the one-booking-per-slot rule.
func (r RoundResult) Violated() bool {
	return r.Created != 1
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	tokens  []string
	doctor  uuid.UUID
	metrics Metrics
	results []RoundResult
}

func main() {
	_ = godotenv.Load()
	telemetry.InitLogger("clinic-booking-simulate", getEnv("APP_ENV", "dev"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Str("api", cfg.APIBaseURL).
		Int("racers", cfg.Racers).
		Int("rounds", cfg.Rounds).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}

	ctx := context.Background()
	if err := sim.Prepare(ctx); err != nil {
		log.Fatal().Err(err).Msg("prepare simulation")
	}

	sim.Run(ctx)
	sim.PrintReport()

	for _, r := range sim.results {
		if r.Violated() {
			os.Exit(1)
		}
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Racers:     getInt("SIM_RACERS", 20),
		Rounds:     getInt("SIM_ROUNDS", 5),
		DoctorID:   os.Getenv("SIM_DOCTOR_ID"),
		DaysAhead:  getInt("SIM_DAYS_AHEAD", 1),
		Timeout:    getDuration("SIM_HTTP_TIMEOUT", 10*time.Second),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Racers < 2 {
		return fmt.Errorf("SIM_RACERS must be >= 2")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.DaysAhead < 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be >= 0")
	}
	if cfg.DoctorID != "" {
		if _, err := uuid.Parse(cfg.DoctorID); err != nil {
			return fmt.Errorf("SIM_DOCTOR_ID: %w", err)
		}
	}
	return nil
}

// Prepare registers one patient per racer and resolves the doctor under test.
func (s *Simulator) Prepare(ctx context.Context) error {
	runID := strings.ToLower(gofakeit.LetterN(6))

	for i := 0; i < s.config.Racers; i++ {
		body := map[string]string{
			"fullName": gofakeit.Name(),
			"email":    fmt.Sprintf("sim.%s.%d@sim.local", runID, i),
			"password": "sim-password",
		}
		var out struct {
			Token string `json:"token"`
		}

		start := time.Now()
		status, err := s.call(ctx, http.MethodPost, "/api/auth/register", "", body, &out)
		ok := err == nil && status == http.StatusCreated
		s.metrics.Register.Record(time.Since(start), ok, false)
		if !ok {
			return fmt.Errorf("register racer %d: status=%d err=%v", i, status, err)
		}
		s.tokens = append(s.tokens, out.Token)
	}

	if s.config.DoctorID != "" {
		s.doctor = uuid.MustParse(s.config.DoctorID)
		return nil
	}

	var doctors []struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.call(ctx, http.MethodGet, "/api/doctors", "", nil, &doctors)
	if err != nil || status != http.StatusOK {
		return fmt.Errorf("list doctors: status=%d err=%v", status, err)
	}
	if len(doctors) == 0 {
		return fmt.Errorf("no doctors available, run the seeder first")
	}
	s.doctor = doctors[0].ID
	return nil
}

func (s *Simulator) Run(ctx context.Context) {
	date := time.Now().AddDate(0, 0, s.config.DaysAhead).Format(schedule.DateLayout)
	log.Info().Str("doctor_id", s.doctor.String()).Str("date", date).Msg("starting booking race")

	for round := 0; round < s.config.Rounds; round++ {
		slot, err := s.freeSlot(ctx, date)
		if err != nil {
			log.Error().Err(err).Int("round", round).Msg("no free slot, stopping")
			return
		}

		res := s.race(ctx, date+"T"+slot+":00")
		s.results = append(s.results, res)

		ev := log.Info()
		if res.Violated() {
			ev = log.Error()
		}
		ev.Int("round", round).
			Str("slot", res.Slot).
			Int("created", res.Created).
			Int("conflicts", res.Conflicts).
			Int("errors", res.Errors).
			Msg("round finished")
	}
}

func (s *Simulator) freeSlot(ctx context.Context, date string) (string, error) {
	q := url.Values{}
	q.Set("doctorId", s.doctor.String())
	q.Set("date", date)

	var out struct {
		Available []string `json:"available"`
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/api/appointments/availability?"+q.Encode(), s.tokens[0], nil, &out)
	ok := err == nil && status == http.StatusOK
	s.metrics.Availability.Record(time.Since(start), ok, false)
	if !ok {
		return "", fmt.Errorf("availability: status=%d err=%v", status, err)
	}
	if len(out.Available) == 0 {
		return "", fmt.Errorf("doctor %s is fully booked on %s", s.doctor, date)
	}
	return out.Available[0], nil
}

// race releases every racer at the same instant against one slot.
func (s *Simulator) race(ctx context.Context, slot string) RoundResult {
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		created   int64
		conflicts int64
		failures  int64
	)

	body := map[string]string{"doctorId": s.doctor.String(), "date": slot}

	for _, token := range s.tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start

			began := time.Now()
			status, err := s.call(ctx, http.MethodPost, "/api/appointments", token, body, nil)
			latency := time.Since(began)

			switch {
			case err == nil && status == http.StatusCreated:
				atomic.AddInt64(&created, 1)
				s.metrics.Booking.Record(latency, true, false)
			case err == nil && status == http.StatusConflict:
				atomic.AddInt64(&conflicts, 1)
				s.metrics.Booking.Record(latency, false, true)
			default:
				atomic.AddInt64(&failures, 1)
				s.metrics.Booking.Record(latency, false, false)
				log.Warn().Err(err).Int("status", status).Msg("unexpected booking response")
			}
		}(token)
	}

	close(start)
	wg.Wait()

	return RoundResult{
		Slot:      slot,
		Created:   int(created),
		Conflicts: int(conflicts),
		Errors:    int(failures),
	}
}

func (s *Simulator) call(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 80))

	printOperationReport("Register", &s.metrics.Register)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)

	fmt.Printf("\n%-6s %-22s %-8s %-10s %-7s %s\n", "ROUND", "SLOT", "CREATED", "CONFLICTS", "ERRORS", "RESULT")
	violations := 0
	for i, r := range s.results {
		result := "ok"
		if r.Violated() {
			result = "VIOLATION"
			violations++
		}
		fmt.Printf("%-6d %-22s %-8d %-10d %-7d %s\n", i, r.Slot, r.Created, r.Conflicts, r.Errors, result)
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("rounds=%d violations=%d\n", len(s.results), violations)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("\n%s:\n", name)
	fmt.Printf("  total=%d success=%d conflict=%d error=%d\n",
		total, atomic.LoadInt64(&om.Success), atomic.LoadInt64(&om.Conflict), atomic.LoadInt64(&om.Error))
	fmt.Printf("  latency avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
