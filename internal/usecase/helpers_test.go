package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/domain/entity"
	domainrepo "clinic-booking/internal/domain/repository"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// setupTestDB opens a private in-memory database. One connection keeps
// transactions strictly serialized, the way the advisory lock does on
// PostgreSQL.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:testdb_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Doctor{},
		&entity.Patient{},
		&entity.Appointment{},
		&entity.AuditLog{},
	))
	return db
}

// fakeSlotCache is an in-memory BookedSlotCache that records invalidations
// and honours the generation guard on Set.
type fakeSlotCache struct {
	mu          sync.Mutex
	entries     map[string][]string
	generations map[string]int64
	invalidated []string
	getErr      error
	gets        int
}

func newFakeSlotCache() *fakeSlotCache {
	return &fakeSlotCache{
		entries:     make(map[string][]string),
		generations: make(map[string]int64),
	}
}

func (c *fakeSlotCache) Get(_ context.Context, doctorID int64, date string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	slots, ok := c.entries[service.BookedSlotsKey(doctorID, date)]
	if !ok {
		return nil, false, nil
	}
	return append([]string{}, slots...), true, nil
}

func (c *fakeSlotCache) Generation(_ context.Context, doctorID int64, date string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, c.getErr
	}
	return c.generations[service.SlotGenerationKey(doctorID, date)], nil
}

func (c *fakeSlotCache) Set(_ context.Context, doctorID int64, date string, generation int64, slots []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[service.SlotGenerationKey(doctorID, date)] != generation {
		return false, nil
	}
	c.entries[service.BookedSlotsKey(doctorID, date)] = append([]string{}, slots...)
	return true, nil
}

func (c *fakeSlotCache) Invalidate(_ context.Context, doctorID int64, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := service.BookedSlotsKey(doctorID, date)
	c.generations[service.SlotGenerationKey(doctorID, date)]++
	delete(c.entries, key)
	c.invalidated = append(c.invalidated, key)
	return nil
}

func (c *fakeSlotCache) invalidations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.invalidated...)
}

// fakeTokenStore is an in-memory TokenStore.
type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]struct{}
	revoked []int64
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]struct{})}
}

func (s *fakeTokenStore) Store(_ context.Context, kind service.TokenKind, userID int64, tokenID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[service.TokenKey(kind, userID, tokenID)] = struct{}{}
	return nil
}

func (s *fakeTokenStore) Exists(_ context.Context, kind service.TokenKind, userID int64, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[service.TokenKey(kind, userID, tokenID)]
	return ok, nil
}

func (s *fakeTokenStore) Revoke(_ context.Context, kind service.TokenKind, userID int64, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, service.TokenKey(kind, userID, tokenID))
	return nil
}

func (s *fakeTokenStore) RevokeAll(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefixes := []string{
		fmt.Sprintf("%s:%d:", service.AccessTokenKind, userID),
		fmt.Sprintf("%s:%d:", service.RefreshTokenKind, userID),
	}
	for key := range s.tokens {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				delete(s.tokens, key)
			}
		}
	}
	s.revoked = append(s.revoked, userID)
	return nil
}

func (s *fakeTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

var errCacheDown = errors.New("cache down")

// testEnv wires every usecase against one database.
type testEnv struct {
	db         *gorm.DB
	cache      *fakeSlotCache
	tokens     *fakeTokenStore
	jwt        *jwt.JWTService
	auth       AuthUsecase
	booking    AppointmentUsecase
	queries    AppointmentQueryUsecase
	slots      SlotUsecase
	doctors    DoctorUsecase
	patients   PatientUsecase
	auditLogs  AuditLogUsecase
	bookingCfg config.BookingConfig
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithBooking(t, config.BookingConfig{SlotCacheTTL: time.Minute})
}

func newTestEnvWithBooking(t *testing.T, bookingCfg config.BookingConfig) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	log := quietLogger()
	cache := newFakeSlotCache()
	tokens := newFakeTokenStore()
	jwtService := jwt.NewJWTService(config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
	})

	userRepo := repository.NewUserRepository()
	doctorRepo := repository.NewDoctorRepository()
	patientRepo := repository.NewPatientRepository()
	appointmentRepo := repository.NewAppointmentRepository()
	auditLogRepo := repository.NewAuditLogRepository()
	auditService := service.NewAuditService(log, auditLogRepo)

	return &testEnv{
		db:         db,
		cache:      cache,
		tokens:     tokens,
		jwt:        jwtService,
		auth:       NewAuthUsecase(db, log, userRepo, patientRepo, jwtService, tokens, auditService),
		booking:    NewAppointmentUsecase(db, log, bookingCfg, doctorRepo, appointmentRepo, NewPatientResolver(log, patientRepo), cache, auditService),
		queries:    NewAppointmentQueryUsecase(db, log, doctorRepo, patientRepo, appointmentRepo),
		slots:      NewSlotUsecase(db, log, appointmentRepo, cache),
		doctors:    NewDoctorUsecase(db, log, userRepo, doctorRepo, patientRepo, appointmentRepo, tokens, auditService),
		patients:   NewPatientUsecase(db, log, userRepo, doctorRepo, patientRepo, appointmentRepo, tokens, auditService),
		auditLogs:  NewAuditLogUsecase(db, log, auditLogRepo),
		bookingCfg: bookingCfg,
	}
}

// hookedAppointmentRepo wraps the real repository to force interleavings.
type hookedAppointmentRepo struct {
	domainrepo.AppointmentRepository
	// afterFindActiveTimes runs once, after the read and before the caller sees it
	afterFindActiveTimes func()
	// skipOccupancyCheck makes ExistsActive report every slot free
	skipOccupancyCheck bool
}

func newHookedAppointmentRepo() *hookedAppointmentRepo {
	return &hookedAppointmentRepo{AppointmentRepository: repository.NewAppointmentRepository()}
}

func (r *hookedAppointmentRepo) FindActiveTimes(db *gorm.DB, doctorID int64, from, to time.Time) ([]time.Time, error) {
	times, err := r.AppointmentRepository.FindActiveTimes(db, doctorID, from, to)
	if hook := r.afterFindActiveTimes; hook != nil {
		r.afterFindActiveTimes = nil
		hook()
	}
	return times, err
}

func (r *hookedAppointmentRepo) ExistsActive(db *gorm.DB, doctorID int64, at time.Time) (bool, error) {
	if r.skipOccupancyCheck {
		return false, nil
	}
	return r.AppointmentRepository.ExistsActive(db, doctorID, at)
}

// bookingWith builds a booking usecase over e's database and cache.
func (e *testEnv) bookingWith(appointmentRepo domainrepo.AppointmentRepository) AppointmentUsecase {
	log := quietLogger()
	return NewAppointmentUsecase(e.db, log, e.bookingCfg, repository.NewDoctorRepository(), appointmentRepo,
		NewPatientResolver(log, repository.NewPatientRepository()), e.cache,
		service.NewAuditService(log, repository.NewAuditLogRepository()))
}

// slotsWith builds a slot usecase over e's database and cache.
func (e *testEnv) slotsWith(appointmentRepo domainrepo.AppointmentRepository) SlotUsecase {
	return NewSlotUsecase(e.db, quietLogger(), appointmentRepo, e.cache)
}

var userSeq int64

// seedDoctor inserts a DOCTOR user and its profile directly.
func (e *testEnv) seedDoctor(t *testing.T, name, specialty string) (*entity.Doctor, *entity.CallerIdentity) {
	t.Helper()
	userSeq++
	user := &entity.User{
		Email:    fmt.Sprintf("doctor%d@clinic.test", userSeq),
		Password: "x",
		Role:     entity.RoleDoctor,
	}
	require.NoError(t, e.db.Create(user).Error)

	doctor := &entity.Doctor{UserID: user.ID, Name: name, Specialty: specialty, City: "Lisbon"}
	require.NoError(t, e.db.Create(doctor).Error)

	return doctor, &entity.CallerIdentity{UserID: user.ID, Email: user.Email, Role: entity.RoleDoctor}
}

// seedRegisteredPatient inserts a PATIENT user with a linked patient row.
func (e *testEnv) seedRegisteredPatient(t *testing.T, email string) (*entity.Patient, *entity.CallerIdentity) {
	t.Helper()
	user := &entity.User{Email: email, Password: "x", Role: entity.RolePatient}
	require.NoError(t, e.db.Create(user).Error)

	patient := &entity.Patient{UserID: &user.ID, FirstName: "Reg", Email: email}
	require.NoError(t, e.db.Create(patient).Error)

	return patient, &entity.CallerIdentity{UserID: user.ID, Email: email, Role: entity.RolePatient}
}

func (e *testEnv) countPatients(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&entity.Patient{}).Count(&n).Error)
	return n
}

func (e *testEnv) countAppointments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&entity.Appointment{}).Count(&n).Error)
	return n
}
