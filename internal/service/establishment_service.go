package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EstablishmentInput struct {
	Name        string
	Description string
	Address     string
	Phone       string
	Email       string
	Latitude    float64
	Longitude   float64
	Category    string
}

type EstablishmentService interface {
	Create(ctx context.Context, in EstablishmentInput, actor Actor) (*model.Establishment, error)
	Update(ctx context.Context, id uint64, in EstablishmentInput, actor Actor) (*model.Establishment, error)
	Get(ctx context.Context, id uint64) (*model.Establishment, error)
	ListMine(ctx context.Context, actor Actor) ([]model.Establishment, error)
	ListByStatus(ctx context.Context, status model.VerificationStatus, limit, offset int, actor Actor) ([]model.Establishment, int64, error)
	Verify(ctx context.Context, id uint64, status model.VerificationStatus, note string, actor Actor) (*model.Establishment, error)
	SetActive(ctx context.Context, id uint64, active bool, actor Actor) (*model.Establishment, error)
}

type establishmentService struct {
	repo     repository.EstablishmentRepository
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewEstablishmentService(repo repository.EstablishmentRepository, notifier notify.Notifier, log *zap.Logger) EstablishmentService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &establishmentService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateEstablishment(in *EstablishmentInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))

	if n := utf8.RuneCountInString(in.Name); n == 0 || n > 120 {
		return invalid("name", "must be 1 to 120 characters")
	}
	if in.Address == "" {
		return invalid("address", "is required")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return invalid("email", "is not a valid address")
		}
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return invalid("latitude", "must be between -90 and 90")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return invalid("longitude", "must be between -180 and 180")
	}
	return nil
}

func applyEstablishmentInput(e *model.Establishment, in EstablishmentInput) {
	e.Name = in.Name
	e.Description = in.Description
	e.Address = in.Address
	e.Phone = in.Phone
	e.Email = in.Email
	e.Latitude = in.Latitude
	e.Longitude = in.Longitude
	e.Category = in.Category
}

func (s *establishmentService) Create(ctx context.Context, in EstablishmentInput, actor Actor) (*model.Establishment, error) {
	if actor.UID == "" {
		return nil, ErrForbidden
	}
	if err := validateEstablishment(&in); err != nil {
		return nil, err
	}
	e := &model.Establishment{
		OwnerUID:           actor.UID,
		VerificationStatus: model.VerificationPending,
		IsActive:           true,
	}
	applyEstablishmentInput(e, in)
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *establishmentService) Update(ctx context.Context, id uint64, in EstablishmentInput, actor Actor) (*model.Establishment, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(e.OwnerUID) {
		return nil, ErrForbidden
	}
	if err := validateEstablishment(&in); err != nil {
		return nil, err
	}
	applyEstablishmentInput(e, in)
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *establishmentService) Get(ctx context.Context, id uint64) (*model.Establishment, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *establishmentService) ListMine(ctx context.Context, actor Actor) ([]model.Establishment, error) {
	if actor.UID == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListByOwner(ctx, actor.UID)
}

func (s *establishmentService) ListByStatus(ctx context.Context, status model.VerificationStatus, limit, offset int, actor Actor) ([]model.Establishment, int64, error) {
	if !actor.Admin {
		return nil, 0, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, 0, invalid("status", "must be PENDING, APPROVED or REJECTED")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func (s *establishmentService) Verify(ctx context.Context, id uint64, status model.VerificationStatus, note string, actor Actor) (*model.Establishment, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if status != model.VerificationApproved && status != model.VerificationRejected {
		return nil, invalid("status", "must be APPROVED or REJECTED")
	}
	note = strings.TrimSpace(note)
	at := s.now()
	if err := s.repo.UpdateVerification(ctx, id, status, note, at); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msg := notify.Message{
		Recipient: e.OwnerUID,
		Email:     e.Email,
		Kind:      notify.KindEstablishmentVerified,
		Data: map[string]string{
			"establishment":   e.Name,
			"establishmentId": strconv.FormatUint(e.ID, 10),
			"status":          string(status),
			"note":            note,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn("verification notification failed", zap.Uint64("establishment_id", e.ID), zap.Error(err))
	}
	return e, nil
}

func (s *establishmentService) SetActive(ctx context.Context, id uint64, active bool, actor Actor) (*model.Establishment, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
