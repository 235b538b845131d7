package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/events"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memDB is an in-memory stand-in for the gorm repositories. One mutex guards
// every table so conditional updates behave like single SQL statements.
type memDB struct {
	mu             sync.Mutex
	packs          map[uint64]*model.Pack
	establishments map[uint64]*model.Establishment
	orders         map[string]*model.Order
	revenue        map[uint64]*model.EstablishmentRevenue
	impact         map[string]*model.UserImpact
	nextID         uint64
}

func newMemDB() *memDB {
	return &memDB{
		packs:          map[uint64]*model.Pack{},
		establishments: map[uint64]*model.Establishment{},
		orders:         map[string]*model.Order{},
		revenue:        map[uint64]*model.EstablishmentRevenue{},
		impact:         map[string]*model.UserImpact{},
		nextID:         100,
	}
}

func (m *memDB) addEstablishment(e model.Establishment) *model.Establishment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		m.nextID++
		e.ID = m.nextID
	}
	m.establishments[e.ID] = &e
	return &e
}

func (m *memDB) addPack(p model.Pack) *model.Pack {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	}
	m.packs[p.ID] = &p
	return &p
}

func (m *memDB) pack(id uint64) model.Pack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.packs[id]
}

func (m *memDB) order(id string) model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memDB) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memDB) setOrder(o model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

type memPacks struct{ db *memDB }

func (r memPacks) Create(_ context.Context, p *model.Pack) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.nextID++
	p.ID = r.db.nextID
	cp := *p
	r.db.packs[p.ID] = &cp
	return nil
}

func (r memPacks) UpdateDetails(_ context.Context, p *model.Pack, quantityDelta int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.packs[p.ID]
	if !ok {
		return nil
	}
	if cur.Quantity+quantityDelta < 0 {
		return repository.ErrStockExhausted
	}
	cur.Title = p.Title
	cur.Description = p.Description
	cur.OriginalPrice = p.OriginalPrice
	cur.DiscountedPrice = p.DiscountedPrice
	cur.AvailableFrom = p.AvailableFrom
	cur.AvailableUntil = p.AvailableUntil
	cur.PickupTimeStart = p.PickupTimeStart
	cur.PickupTimeEnd = p.PickupTimeEnd
	cur.Quantity += quantityDelta
	return nil
}

func (r memPacks) SetImageURL(_ context.Context, id uint64, url string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.packs[id]; ok {
		p.ImageURL = &url
	}
	return nil
}

func (r memPacks) SetCO2(_ context.Context, id uint64, kg float64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.packs[id]; ok {
		p.CO2SavedKg = kg
	}
	return nil
}

func (r memPacks) FindByID(_ context.Context, id uint64) (*model.Pack, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.packs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPacks) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.packs[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.db.packs, id)
	return nil
}

func (r memPacks) Deactivate(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.packs[id]; ok {
		p.IsActive = false
	}
	return nil
}

func (r memPacks) ListByEstablishment(_ context.Context, establishmentID uint64, activeOnly bool) ([]model.Pack, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Pack
	for _, p := range r.db.packs {
		if p.EstablishmentID == establishmentID && (!activeOnly || p.IsActive) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPacks) ListOpen(_ context.Context, now time.Time, f repository.OpenPackFilter) ([]model.Pack, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []model.Pack
	for _, p := range r.db.packs {
		e, ok := r.db.establishments[p.EstablishmentID]
		if !ok || !p.IsActive || p.Quantity <= 0 || now.Before(p.AvailableFrom) || now.After(p.AvailableUntil) {
			continue
		}
		if !e.IsActive || e.VerificationStatus != model.VerificationApproved {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.MinLat != 0 || f.MaxLat != 0 {
			if e.Latitude < f.MinLat || e.Latitude > f.MaxLat || e.Longitude < f.MinLng || e.Longitude > f.MaxLng {
				continue
			}
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AvailableUntil.Before(all[j].AvailableUntil) })
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []model.Pack{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], total, nil
}

func (r memPacks) SetDB(*gorm.DB) {}

type memEstablishments struct{ db *memDB }

func (r memEstablishments) Create(_ context.Context, e *model.Establishment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.nextID++
	e.ID = r.db.nextID
	cp := *e
	r.db.establishments[e.ID] = &cp
	return nil
}

func (r memEstablishments) Update(_ context.Context, e *model.Establishment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *e
	r.db.establishments[e.ID] = &cp
	return nil
}

func (r memEstablishments) FindByID(_ context.Context, id uint64) (*model.Establishment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.establishments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memEstablishments) FindByIDs(_ context.Context, ids []uint64) (map[uint64]model.Establishment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[uint64]model.Establishment{}
	for _, id := range ids {
		if e, ok := r.db.establishments[id]; ok {
			out[id] = *e
		}
	}
	return out, nil
}

func (r memEstablishments) ListByOwner(_ context.Context, ownerUID string) ([]model.Establishment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Establishment
	for _, e := range r.db.establishments {
		if e.OwnerUID == ownerUID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r memEstablishments) ListByStatus(_ context.Context, status model.VerificationStatus, limit, offset int) ([]model.Establishment, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Establishment
	for _, e := range r.db.establishments {
		if status == "" || e.VerificationStatus == status {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r memEstablishments) UpdateVerification(_ context.Context, id uint64, status model.VerificationStatus, note string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.establishments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.VerificationStatus = status
	e.VerificationNote = note
	e.VerifiedAt = &at
	return nil
}

func (r memEstablishments) SetActive(_ context.Context, id uint64, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if e, ok := r.db.establishments[id]; ok {
		e.IsActive = active
	}
	return nil
}

func (r memEstablishments) SetDB(*gorm.DB) {}

type memOrders struct {
	db *memDB
	// beforeCommit runs inside CreateReserved after the stock check; tests
	// use it to force interleavings.
	beforeCommit func()
}

func (r memOrders) CreateReserved(_ context.Context, o *model.Order, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.beforeCommit != nil {
		r.beforeCommit()
	}
	p, ok := r.db.packs[o.PackID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.Quantity < o.Quantity {
		return repository.ErrStockExhausted
	}
	e := r.db.establishments[p.EstablishmentID]
	if !p.IsActive || now.Before(p.AvailableFrom) || now.After(p.AvailableUntil) ||
		e == nil || !e.IsActive || e.VerificationStatus != model.VerificationApproved {
		return repository.ErrPackClosed
	}
	p.Quantity -= o.Quantity
	cp := *o
	cp.CreatedAt = now
	r.db.orders[o.ID] = &cp
	return nil
}

func (r memOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r memOrders) Transition(_ context.Context, id string, from, to model.OrderStatus, updates map[string]interface{}) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	for k, v := range updates {
		switch k {
		case "payment_id":
			o.PaymentID = v.(string)
		case "payment_status":
			o.PaymentStatus = v.(string)
		case "payment_method":
			o.PaymentMethod = v.(string)
		case "paid_amount":
			d := v.(decimal.Decimal)
			o.PaidAmount = &d
		case "paid_at":
			t := v.(time.Time)
			o.PaidAt = &t
		case "ready_at":
			t := v.(time.Time)
			o.ReadyAt = &t
		case "completed_at":
			t := v.(time.Time)
			o.CompletedAt = &t
		}
	}
	return true, nil
}

func (r memOrders) CancelAndRestock(_ context.Context, o *model.Order, from []model.OrderStatus, reason string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.orders[o.ID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if cur.Status == st {
			matched = true
		}
	}
	if !matched {
		return false, nil
	}
	cur.Status = model.OrderStatusCancelled
	cur.CancelledAt = &at
	cur.CancelReason = reason
	if p, ok := r.db.packs[o.PackID]; ok {
		p.Quantity += o.Quantity
	}
	return true, nil
}

func (r memOrders) UpdatePaymentStatus(_ context.Context, id, paymentStatus string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if o, ok := r.db.orders[id]; ok {
		o.PaymentStatus = paymentStatus
	}
	return nil
}

func (r memOrders) SetPreference(_ context.Context, id, preferenceID, checkoutURL string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if o, ok := r.db.orders[id]; ok {
		o.PaymentPreferenceID = preferenceID
		o.CheckoutURL = checkoutURL
	}
	return nil
}

func (r memOrders) list(match func(o *model.Order) bool) []model.Order {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Order
	for _, o := range r.db.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PickupDate.Before(out[j].PickupDate) })
	return out
}

func (r memOrders) ListByUser(_ context.Context, userUID string) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool { return o.UserUID == userUID }), nil
}

func (r memOrders) ListByEstablishment(_ context.Context, establishmentID uint64, status model.OrderStatus) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool {
		return o.EstablishmentID == establishmentID && (status == "" || o.Status == status)
	}), nil
}

func (r memOrders) CountByPack(_ context.Context, packID uint64) (int64, error) {
	return int64(len(r.list(func(o *model.Order) bool { return o.PackID == packID }))), nil
}

func (r memOrders) ListReminderCandidates(_ context.Context, kind repository.ReminderKind, statuses []model.OrderStatus, after, until time.Time) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool {
		sent := o.Reminder24hSentAt
		if kind == repository.Reminder2h {
			sent = o.Reminder2hSentAt
		}
		if sent != nil || !o.PickupDate.After(after) || o.PickupDate.After(until) {
			return false
		}
		for _, st := range statuses {
			if o.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (r memOrders) ClaimReminder(_ context.Context, id string, kind repository.ReminderKind, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return false, nil
	}
	marker := &o.Reminder24hSentAt
	if kind == repository.Reminder2h {
		marker = &o.Reminder2hSentAt
	}
	if *marker != nil {
		return false, nil
	}
	*marker = &at
	return true, nil
}

func (r memOrders) EachBatch(_ context.Context, size int, fn func(batch []model.Order) error) error {
	all := r.list(func(*model.Order) bool { return true })
	for start := 0; start < len(all); start += size {
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r memOrders) SetDB(*gorm.DB) {}

type memRevenue struct{ db *memDB }

func (r memRevenue) Add(_ context.Context, establishmentID uint64, amount decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rev, ok := r.db.revenue[establishmentID]
	if !ok {
		rev = &model.EstablishmentRevenue{EstablishmentID: establishmentID}
		r.db.revenue[establishmentID] = rev
	}
	rev.Amount = rev.Amount.Add(amount)
	rev.OrdersPaid++
	return nil
}

func (r memRevenue) Refund(_ context.Context, establishmentID uint64, amount decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rev, ok := r.db.revenue[establishmentID]
	if !ok || rev.Amount.LessThan(amount) {
		return gorm.ErrRecordNotFound
	}
	rev.Amount = rev.Amount.Sub(amount)
	if rev.OrdersPaid > 0 {
		rev.OrdersPaid--
	}
	return nil
}

func (r memRevenue) Payout(_ context.Context, establishmentID uint64, amount decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rev, ok := r.db.revenue[establishmentID]
	if !ok || rev.Amount.LessThan(amount) {
		return gorm.ErrRecordNotFound
	}
	rev.Amount = rev.Amount.Sub(amount)
	rev.PaidOut = rev.PaidOut.Add(amount)
	return nil
}

func (r memRevenue) Get(_ context.Context, establishmentID uint64) (*model.EstablishmentRevenue, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rev, ok := r.db.revenue[establishmentID]
	if !ok {
		return &model.EstablishmentRevenue{EstablishmentID: establishmentID}, nil
	}
	cp := *rev
	return &cp, nil
}

func (r memRevenue) SetDB(*gorm.DB) {}

type memImpact struct{ db *memDB }

func (r memImpact) Add(_ context.Context, uid string, packs int64, co2Kg float64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	imp, ok := r.db.impact[uid]
	if !ok {
		imp = &model.UserImpact{UID: uid}
		r.db.impact[uid] = imp
	}
	imp.PacksRescued += packs
	imp.CO2AvoidedKg += co2Kg
	imp.OrdersPickedUp++
	return nil
}

func (r memImpact) Get(_ context.Context, uid string) (*model.UserImpact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	imp, ok := r.db.impact[uid]
	if !ok {
		return &model.UserImpact{UID: uid}, nil
	}
	cp := *imp
	return &cp, nil
}

func (r memImpact) SetDB(*gorm.DB) {}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fakeGateway struct {
	mu   sync.Mutex
	reqs []payment.PreferenceRequest
	err  error
}

func (g *fakeGateway) CreatePreference(_ context.Context, req payment.PreferenceRequest) (*payment.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Preference{ID: "cs_" + req.OrderID, CheckoutURL: "https://checkout.test/" + req.OrderID}, nil
}

var errBoom = errors.New("boom")
