package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/foodrescue-backend/internal/ai"
	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shinyyama/foodrescue-backend/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	// geoScanLimit caps how many prefiltered packs a radius search inspects.
	geoScanLimit = 500
)

type PackInput struct {
	Title           string
	Description     string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
	AvailableFrom   time.Time
	AvailableUntil  time.Time
	PickupTimeStart string
	PickupTimeEnd   string
}

// ListFilter narrows the public pack listing. Lat/Lng and RadiusKm enable
// the radius search.
type ListFilter struct {
	Category string
	Lat      *float64
	Lng      *float64
	RadiusKm float64
	Limit    int
	Offset   int
}

func (f ListFilter) geo() bool {
	return f.Lat != nil && f.Lng != nil && f.RadiusKm > 0
}

type PackListing struct {
	Pack          model.Pack
	Establishment model.Establishment
	DistanceKm    *float64
}

type PackDetail struct {
	Pack          model.Pack
	Establishment model.Establishment
	Reasons       []eligibility.Reason
}

type CO2Estimator interface {
	Estimate(ctx context.Context, in ai.EstimateInput) (float64, error)
}

type PackService interface {
	Create(ctx context.Context, establishmentID uint64, in PackInput, actor Actor) (*model.Pack, error)
	Update(ctx context.Context, id uint64, in PackInput, actor Actor) (*model.Pack, error)
	// Delete removes a pack nobody ordered; otherwise it deactivates it and reports true.
	Delete(ctx context.Context, id uint64, actor Actor) (deactivated bool, err error)
	Get(ctx context.Context, id uint64, now time.Time) (*PackDetail, error)
	Availability(ctx context.Context, id uint64, now time.Time) ([]eligibility.Reason, error)
	ListAvailable(ctx context.Context, f ListFilter, now time.Time) ([]PackListing, int64, error)
	ListByEstablishment(ctx context.Context, establishmentID uint64, actor Actor) ([]model.Pack, error)
	UploadImage(ctx context.Context, id uint64, actor Actor, contentType string, data []byte) (*model.Pack, error)
	EstimateCO2(ctx context.Context, id uint64, actor Actor) (*model.Pack, error)
}

type PackServiceDeps struct {
	Packs          repository.PackRepository
	Establishments repository.EstablishmentRepository
	Orders         repository.OrderRepository
	// Images and Estimator are optional; the operations using them fail with ErrExternal.
	Images    storage.ImageStore
	Estimator CO2Estimator
	Log       *zap.Logger
}

type packService struct {
	packs          repository.PackRepository
	establishments repository.EstablishmentRepository
	orders         repository.OrderRepository
	images         storage.ImageStore
	estimator      CO2Estimator
	log            *zap.Logger
}

func NewPackService(d PackServiceDeps) PackService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &packService{
		packs:          d.Packs,
		establishments: d.Establishments,
		orders:         d.Orders,
		images:         d.Images,
		estimator:      d.Estimator,
		log:            d.Log,
	}
}

func validatePack(in *PackInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.PickupTimeStart = strings.TrimSpace(in.PickupTimeStart)
	in.PickupTimeEnd = strings.TrimSpace(in.PickupTimeEnd)

	if n := utf8.RuneCountInString(in.Title); n == 0 || n > 120 {
		return invalid("title", "must be 1 to 120 characters")
	}
	if !in.OriginalPrice.IsPositive() {
		return invalid("originalPrice", "must be greater than 0")
	}
	if !in.DiscountedPrice.IsPositive() || in.DiscountedPrice.GreaterThan(in.OriginalPrice) {
		return invalid("discountedPrice", "must be greater than 0 and not exceed originalPrice")
	}
	if in.Quantity < 0 {
		return invalid("quantity", "must not be negative")
	}
	if in.AvailableFrom.IsZero() || in.AvailableUntil.IsZero() {
		return invalid("availableFrom", "availability window is required")
	}
	if in.AvailableFrom.After(in.AvailableUntil) {
		return invalid("availableUntil", "must not be before availableFrom")
	}
	if in.PickupTimeStart == "" && in.PickupTimeEnd == "" {
		return nil
	}
	start, err := time.Parse("15:04", in.PickupTimeStart)
	if err != nil {
		return invalid("pickupTimeStart", "must be HH:MM")
	}
	end, err := time.Parse("15:04", in.PickupTimeEnd)
	if err != nil {
		return invalid("pickupTimeEnd", "must be HH:MM")
	}
	if start.After(end) {
		return invalid("pickupTimeEnd", "must not be before pickupTimeStart")
	}
	return nil
}

func applyPackInput(p *model.Pack, in PackInput) {
	p.Title = in.Title
	p.Description = in.Description
	p.OriginalPrice = in.OriginalPrice
	p.DiscountedPrice = in.DiscountedPrice
	p.Quantity = in.Quantity
	p.AvailableFrom = in.AvailableFrom.UTC()
	p.AvailableUntil = in.AvailableUntil.UTC()
	p.PickupTimeStart = in.PickupTimeStart
	p.PickupTimeEnd = in.PickupTimeEnd
}

func (s *packService) Create(ctx context.Context, establishmentID uint64, in PackInput, actor Actor) (*model.Pack, error) {
	est, err := s.findEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(est.OwnerUID) {
		return nil, ErrForbidden
	}
	if err := validatePack(&in); err != nil {
		return nil, err
	}
	p := &model.Pack{EstablishmentID: est.ID, IsActive: true}
	applyPackInput(p, in)
	if err := s.packs.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *packService) Update(ctx context.Context, id uint64, in PackInput, actor Actor) (*model.Pack, error) {
	p, _, err := s.ownedPack(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := validatePack(&in); err != nil {
		return nil, err
	}
	// Stock moves by the difference so reservations made since the read survive.
	delta := in.Quantity - p.Quantity
	applyPackInput(p, in)
	if err := s.packs.UpdateDetails(ctx, p, delta); err != nil {
		if errors.Is(err, repository.ErrStockExhausted) {
			return nil, invalid("quantity", "units were reserved meanwhile; reload and retry")
		}
		return nil, err
	}
	return s.reload(ctx, p.ID)
}

func (s *packService) Delete(ctx context.Context, id uint64, actor Actor) (bool, error) {
	p, _, err := s.ownedPack(ctx, id, actor)
	if err != nil {
		return false, err
	}
	cnt, err := s.orders.CountByPack(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if cnt > 0 {
		if err := s.packs.Deactivate(ctx, p.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := s.packs.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	return false, nil
}

func (s *packService) Get(ctx context.Context, id uint64, now time.Time) (*PackDetail, error) {
	p, est, err := s.packWithEstablishment(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PackDetail{Pack: *p, Establishment: *est, Reasons: eligibility.Evaluate(*p, *est, now)}, nil
}

func (s *packService) Availability(ctx context.Context, id uint64, now time.Time) ([]eligibility.Reason, error) {
	d, err := s.Get(ctx, id, now)
	if err != nil {
		return nil, err
	}
	return d.Reasons, nil
}

func (s *packService) ListAvailable(ctx context.Context, f ListFilter, now time.Time) ([]PackListing, int64, error) {
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rf := repository.OpenPackFilter{
		Category: strings.TrimSpace(f.Category),
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
	if f.geo() {
		rf.MinLat, rf.MaxLat, rf.MinLng, rf.MaxLng = boundingBox(*f.Lat, *f.Lng, f.RadiusKm)
		rf.Limit, rf.Offset = geoScanLimit, 0
	}
	packs, total, err := s.packs.ListOpen(ctx, now, rf)
	if err != nil {
		return nil, 0, err
	}
	ests, err := s.establishments.FindByIDs(ctx, establishmentIDs(packs))
	if err != nil {
		return nil, 0, err
	}

	listings := make([]PackListing, 0, len(packs))
	for _, p := range packs {
		est, ok := ests[p.EstablishmentID]
		if !ok || !eligibility.IsPurchasable(p, est, now) {
			total--
			continue
		}
		l := PackListing{Pack: p, Establishment: est}
		if f.geo() {
			d := haversineKm(*f.Lat, *f.Lng, est.Latitude, est.Longitude)
			if d > f.RadiusKm {
				continue
			}
			l.DistanceKm = &d
		}
		listings = append(listings, l)
	}
	if !f.geo() {
		return listings, total, nil
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return *listings[i].DistanceKm < *listings[j].DistanceKm
	})
	total = int64(len(listings))
	if f.Offset >= len(listings) {
		return []PackListing{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(listings) {
		end = len(listings)
	}
	return listings[f.Offset:end], total, nil
}

func (s *packService) ListByEstablishment(ctx context.Context, establishmentID uint64, actor Actor) ([]model.Pack, error) {
	est, err := s.findEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, err
	}
	activeOnly := !actor.Is(est.OwnerUID) && !actor.Admin
	return s.packs.ListByEstablishment(ctx, establishmentID, activeOnly)
}

func (s *packService) UploadImage(ctx context.Context, id uint64, actor Actor, contentType string, data []byte) (*model.Pack, error) {
	p, _, err := s.ownedPack(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data) > storage.MaxImageBytes {
		return nil, invalid("image", fmt.Sprintf("must be between 1 and %d bytes", storage.MaxImageBytes))
	}
	path, err := storage.PackImagePath(p.ID, contentType)
	if err != nil {
		return nil, invalid("image", "must be jpeg, png or webp")
	}
	if s.images == nil {
		return nil, external("upload image", errors.New("image storage is not configured"))
	}
	u, err := s.images.Put(ctx, path, contentType, data)
	if err != nil {
		return nil, external("upload image", err)
	}
	if err := s.packs.SetImageURL(ctx, p.ID, u); err != nil {
		return nil, err
	}
	return s.reload(ctx, p.ID)
}

func (s *packService) EstimateCO2(ctx context.Context, id uint64, actor Actor) (*model.Pack, error) {
	p, est, err := s.ownedPack(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if s.estimator == nil {
		return nil, external("estimate co2", errors.New("co2 estimator is not configured"))
	}
	kg, err := s.estimator.Estimate(ctx, ai.EstimateInput{
		PackID:      p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    est.Category,
	})
	if err != nil {
		return nil, external("estimate co2", err)
	}
	if err := s.packs.SetCO2(ctx, p.ID, kg); err != nil {
		return nil, err
	}
	s.log.Info("pack co2 updated", zap.Uint64("pack_id", p.ID), zap.Float64("kg", kg))
	return s.reload(ctx, p.ID)
}

func (s *packService) reload(ctx context.Context, id uint64) (*model.Pack, error) {
	p, err := s.packs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *packService) ownedPack(ctx context.Context, id uint64, actor Actor) (*model.Pack, *model.Establishment, error) {
	p, est, err := s.packWithEstablishment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Is(est.OwnerUID) {
		return nil, nil, ErrForbidden
	}
	return p, est, nil
}

func (s *packService) packWithEstablishment(ctx context.Context, id uint64) (*model.Pack, *model.Establishment, error) {
	p, err := s.packs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	est, err := s.findEstablishment(ctx, p.EstablishmentID)
	if err != nil {
		return nil, nil, err
	}
	return p, est, nil
}

func (s *packService) findEstablishment(ctx context.Context, id uint64) (*model.Establishment, error) {
	est, err := s.establishments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return est, nil
}

func establishmentIDs(packs []model.Pack) []uint64 {
	seen := make(map[uint64]struct{}, len(packs))
	ids := make([]uint64, 0, len(packs))
	for _, p := range packs {
		if _, ok := seen[p.EstablishmentID]; ok {
			continue
		}
		seen[p.EstablishmentID] = struct{}{}
		ids = append(ids, p.EstablishmentID)
	}
	return ids
}
