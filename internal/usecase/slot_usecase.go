package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrInvalidDoctorID = errors.New("doctor id must be a positive integer")
	ErrInvalidDate     = errors.New("invalid date, use YYYY-MM-DD")
)

// SlotUsecase answers which slots of a doctor-day are taken or free.
type SlotUsecase interface {
	GetBookedSlots(ctx context.Context, doctorID int64, date string) (*dto.BookedSlotsResponse, error)
	GetAvailableSlots(ctx context.Context, doctorID int64, date string) (*dto.AvailableSlotsResponse, error)
}

type slotUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	slotCache       service.BookedSlotCache
	loads           singleflight.Group
}

func NewSlotUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	slotCache service.BookedSlotCache,
) SlotUsecase {
	return &slotUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
		slotCache:       slotCache,
	}
}

func (u *slotUsecase) GetBookedSlots(ctx context.Context, doctorID int64, date string) (*dto.BookedSlotsResponse, error) {
	if _, err := validateSlotQuery(doctorID, date); err != nil {
		return nil, err
	}

	booked, err := u.bookedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return &dto.BookedSlotsResponse{Booked: booked}, nil
}

func (u *slotUsecase) GetAvailableSlots(ctx context.Context, doctorID int64, date string) (*dto.AvailableSlotsResponse, error) {
	day, err := validateSlotQuery(doctorID, date)
	if err != nil {
		return nil, err
	}

	resp := &dto.AvailableSlotsResponse{Date: date, Available: []string{}}
	offerable := entity.OfferableSlots(day)
	if len(offerable) == 0 {
		return resp, nil
	}

	booked, err := u.bookedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	for _, s := range offerable {
		if _, ok := taken[s]; !ok {
			resp.Available = append(resp.Available, s)
		}
	}
	return resp, nil
}

// bookedSlots reads through the cache. Concurrent misses for the same
// doctor-day share one database query.
func (u *slotUsecase) bookedSlots(ctx context.Context, doctorID int64, day string) ([]string, error) {
	slots, ok, err := u.slotCache.Get(ctx, doctorID, day)
	if err != nil {
		u.log.Warnf("Booked slot cache unavailable, reading database: %+v", err)
	} else if ok {
		return slots, nil
	}

	v, err, _ := u.loads.Do(service.BookedSlotsKey(doctorID, day), func() (interface{}, error) {
		return u.loadBookedSlots(ctx, doctorID, day)
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]string)
	out := make([]string, len(shared))
	copy(out, shared)
	return out, nil
}

func (u *slotUsecase) loadBookedSlots(ctx context.Context, doctorID int64, day string) ([]string, error) {
	date, _ := entity.ParseSlotDate(day)
	from, to := entity.DayBounds(date)

	// taken before the query; Set refuses the fill if a booking invalidated since
	generation, genErr := u.slotCache.Generation(ctx, doctorID, day)
	if genErr != nil {
		u.log.Warnf("Booked slot cache unavailable, skipping fill: %+v", genErr)
	}

	times, err := u.appointmentRepo.FindActiveTimes(u.db.WithContext(ctx), doctorID, from, to)
	if err != nil {
		u.log.Warnf("Failed to find booked slots for doctor %d on %s: %+v", doctorID, day, err)
		return nil, err
	}

	slots := distinctSlotLabels(times)
	if genErr == nil {
		if _, err := u.slotCache.Set(ctx, doctorID, day, generation, slots); err != nil {
			u.log.Warnf("Failed to cache booked slots for doctor %d on %s: %+v", doctorID, day, err)
		}
	}
	return slots, nil
}

func validateSlotQuery(doctorID int64, date string) (time.Time, error) {
	if doctorID <= 0 {
		return time.Time{}, ErrInvalidDoctorID
	}
	day, ok := entity.ParseSlotDate(date)
	if !ok {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

func distinctSlotLabels(times []time.Time) []string {
	seen := make(map[string]struct{}, len(times))
	labels := make([]string, 0, len(times))
	for _, t := range times {
		label := t.Format(entity.SlotLayout)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
