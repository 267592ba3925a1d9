package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDB хранилище в памяти с теми же условными обновлениями, что и SQL
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID   int64
	users    map[int64]model.User
	students map[int64]model.Student
	slots    map[int64]model.Slot
	bookings map[int64]model.Booking
	conduct  map[int64]model.TeacherConductState
	events   []model.CancellationEvent
}

func newMemDB() *memDB {
	return &memDB{
		nextID:   100,
		users:    map[int64]model.User{},
		students: map[int64]model.Student{},
		slots:    map[int64]model.Slot{},
		bookings: map[int64]model.Booking{},
		conduct:  map[int64]model.TeacherConductState{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

type memTxKey struct{}

// memTx журнал отката изменений, сделанных внутри InTx
type memTx struct {
	undo []func()
}

// touch запоминает откат; вызывается под db.mu
func (db *memDB) touch(ctx context.Context, restore func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, restore)
	}
}

// InTx сериализует транзакции и откатывает их изменения при ошибке
func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		db.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) booking(t *testing.T, id int64) model.Booking {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.bookings[id]
	require.True(t, ok, "booking %d", id)
	return b
}

func (db *memDB) slot(t *testing.T, id int64) model.Slot {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.slots[id]
	require.True(t, ok, "slot %d", id)
	return s
}

func (db *memDB) eventCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.events)
}

// overlaps пересечение полуинтервалов [start, end), как у ограничения slots_no_overlap
func overlaps(slot model.Slot, start, end time.Time) bool {
	return slot.StartTime.Before(end) && start.Before(slot.EndTime)
}

type memSlots struct{ db *memDB }

func (s memSlots) Create(_ context.Context, slot *model.Slot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.slots {
		if other.TeacherID == slot.TeacherID && overlaps(other, slot.StartTime, slot.EndTime) {
			return repository.ErrSlotOverlap
		}
	}
	slot.ID = s.db.id()
	slot.CreatedAt = time.Now()
	s.db.slots[slot.ID] = *slot
	return nil
}

func (s memSlots) GetByID(_ context.Context, id int64) (*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s memSlots) HasOverlap(_ context.Context, teacherID int64, start, end time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.slots {
		if other.TeacherID == teacherID && overlaps(other, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s memSlots) Reserve(ctx context.Context, slotID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[slotID]
	if !ok || slot.IsBooked {
		return false, nil
	}
	prev := slot
	s.db.touch(ctx, func() { s.db.slots[slotID] = prev })
	slot.IsBooked = true
	s.db.slots[slotID] = slot
	return true, nil
}

func (s memSlots) Release(ctx context.Context, slotID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if slot, ok := s.db.slots[slotID]; ok && slot.IsBooked {
		prev := slot
		s.db.touch(ctx, func() { s.db.slots[slotID] = prev })
		slot.IsBooked = false
		s.db.slots[slotID] = slot
	}
	return nil
}

type memBookings struct{ db *memDB }

func (b memBookings) update(ctx context.Context, id int64, cond func(*model.Booking) bool, apply func(*model.Booking)) bool {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	booking, ok := b.db.bookings[id]
	if !ok || !cond(&booking) {
		return false
	}
	prev := booking
	b.db.touch(ctx, func() { b.db.bookings[id] = prev })
	apply(&booking)
	booking.UpdatedAt = time.Now()
	b.db.bookings[id] = booking
	return true
}

func (b memBookings) Create(ctx context.Context, booking *model.Booking) error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, other := range b.db.bookings {
		if other.SlotID == booking.SlotID &&
			(other.PaymentStatus == model.PaymentStatusPending || other.PaymentStatus == model.PaymentStatusCaptured) {
			return repository.ErrSlotBooked
		}
	}
	booking.ID = b.db.id()
	id := booking.ID
	b.db.touch(ctx, func() { delete(b.db.bookings, id) })
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	b.db.bookings[booking.ID] = *booking
	return nil
}

func (b memBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	booking, ok := b.db.bookings[id]
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (b memBookings) GetByPaymentIntent(_ context.Context, intentRef string) (*model.Booking, error) {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, booking := range b.db.bookings {
		if booking.PaymentIntentRef != nil && *booking.PaymentIntentRef == intentRef {
			return &booking, nil
		}
	}
	return nil, nil
}

func (b memBookings) SetPaymentIntent(ctx context.Context, id int64, intentRef string) error {
	ok := b.update(ctx, id,
		func(bk *model.Booking) bool { return bk.PaymentIntentRef == nil },
		func(bk *model.Booking) { bk.PaymentIntentRef = &intentRef },
	)
	if !ok {
		return fmt.Errorf("payment intent already set for booking %d", id)
	}
	return nil
}

func (b memBookings) TransitionStatus(ctx context.Context, id int64, from, to model.PaymentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("invalid payment status transition %s -> %s", from, to)
	}
	return b.update(ctx, id,
		func(bk *model.Booking) bool { return bk.PaymentStatus == from },
		func(bk *model.Booking) { bk.PaymentStatus = to },
	), nil
}

func (b memBookings) MarkRefunded(ctx context.Context, id int64, refundedCents int64, reason string) (bool, error) {
	return b.update(ctx, id,
		func(bk *model.Booking) bool { return bk.PaymentStatus == model.PaymentStatusPending },
		func(bk *model.Booking) {
			bk.PaymentStatus = model.PaymentStatusRefunded
			bk.RefundedCents = refundedCents
			bk.CancelReason = &reason
		},
	), nil
}

func (b memBookings) ClaimRecording(ctx context.Context, id int64, placeholder string) (bool, error) {
	return b.update(ctx, id,
		func(bk *model.Booking) bool { return bk.RecordingSessionRef == nil },
		func(bk *model.Booking) { bk.RecordingSessionRef = &placeholder },
	), nil
}

func (b memBookings) ReplaceRecordingRef(ctx context.Context, id int64, placeholder, sessionRef string) (bool, error) {
	return b.update(ctx, id,
		func(bk *model.Booking) bool {
			return bk.RecordingSessionRef != nil && *bk.RecordingSessionRef == placeholder
		},
		func(bk *model.Booking) { bk.RecordingSessionRef = &sessionRef },
	), nil
}

func (b memBookings) ClearRecordingClaim(ctx context.Context, id int64, placeholder string) error {
	b.update(ctx, id,
		func(bk *model.Booking) bool {
			return bk.RecordingSessionRef != nil && *bk.RecordingSessionRef == placeholder
		},
		func(bk *model.Booking) { bk.RecordingSessionRef = nil },
	)
	return nil
}

func (b memBookings) MarkTeacherJoined(ctx context.Context, id int64, at time.Time) error {
	b.update(ctx, id,
		func(bk *model.Booking) bool { return bk.TeacherJoinedAt == nil },
		func(bk *model.Booking) { bk.TeacherJoinedAt = &at },
	)
	return nil
}

func (b memBookings) SetRecordingLocation(ctx context.Context, id int64, location string) error {
	if !b.update(ctx, id, func(*model.Booking) bool { return true }, func(bk *model.Booking) { bk.RecordingLocation = &location }) {
		return fmt.Errorf("booking %d not found", id)
	}
	return nil
}

type memUsers struct{ db *memDB }

func (u memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	user, ok := u.db.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (u memUsers) SetPayoutAccount(_ context.Context, id int64, accountID string) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	user, ok := u.db.users[id]
	if !ok || user.Role != model.RoleTeacher {
		return fmt.Errorf("teacher %d not found", id)
	}
	user.PayoutAccountID = &accountID
	u.db.users[id] = user
	return nil
}

func (u memUsers) SetTelegramChat(_ context.Context, id int64, chatID int64) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	user, ok := u.db.users[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	user.TelegramChatID = &chatID
	u.db.users[id] = user
	return nil
}

type memStudents struct{ db *memDB }

func (s memStudents) GetByID(_ context.Context, id int64) (*model.Student, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	student, ok := s.db.students[id]
	if !ok {
		return nil, nil
	}
	return &student, nil
}

type memConduct struct{ db *memDB }

func (c memConduct) IncrementStrike(ctx context.Context, teacherID int64, threshold int) (*model.TeacherConductState, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	state, existed := c.db.conduct[teacherID]
	prev := state
	c.db.touch(ctx, func() {
		if existed {
			c.db.conduct[teacherID] = prev
		} else {
			delete(c.db.conduct, teacherID)
		}
	})
	state.TeacherID = teacherID
	state.IsSuspended = state.IsSuspended || state.StrikeCount+1 >= threshold
	state.StrikeCount = min(state.StrikeCount+1, threshold)
	state.UpdatedAt = time.Now()
	c.db.conduct[teacherID] = state
	return &state, nil
}

func (c memConduct) Reset(_ context.Context, teacherID int64) (*model.TeacherConductState, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	state := model.TeacherConductState{TeacherID: teacherID, UpdatedAt: time.Now()}
	c.db.conduct[teacherID] = state
	return &state, nil
}

func (c memConduct) Get(_ context.Context, teacherID int64) (*model.TeacherConductState, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	state := c.db.conduct[teacherID]
	state.TeacherID = teacherID
	return &state, nil
}

type memCancellations struct{ db *memDB }

// LockTeacher транзакции fake уже сериализованы через txMu
func (c memCancellations) LockTeacher(context.Context, int64) error { return nil }

func (c memCancellations) CountTeacherInitiatedSince(_ context.Context, teacherID int64, since time.Time) (int, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	n := 0
	for _, e := range c.db.events {
		if e.TeacherID == teacherID && e.Initiator == model.InitiatorTeacher && !e.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (c memCancellations) Append(ctx context.Context, event *model.CancellationEvent) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	event.ID = c.db.id()
	n := len(c.db.events)
	c.db.touch(ctx, func() { c.db.events = c.db.events[:n] })
	c.db.events = append(c.db.events, *event)
	return nil
}

type refundCall struct {
	ref    string
	amount int64
}

type fakePayments struct {
	mu sync.Mutex
	n  int

	authorizeErr error
	captureFn    func(ref string) error
	cancelErr    error
	linkErr      error
	validSig     bool
	event        *model.PaymentEvent

	authorized []model.AuthorizeRequest
	captures   []string
	cancels    []string
	refunds    []refundCall
	linkCalls  []string
}

func (p *fakePayments) Authorize(_ context.Context, req model.AuthorizeRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authorizeErr != nil {
		return "", p.authorizeErr
	}
	p.n++
	p.authorized = append(p.authorized, req)
	return fmt.Sprintf("pi_%d", p.n), nil
}

func (p *fakePayments) Capture(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureFn != nil {
		if err := p.captureFn(ref); err != nil {
			return err
		}
	}
	p.captures = append(p.captures, ref)
	return nil
}

func (p *fakePayments) Cancel(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelErr != nil {
		return p.cancelErr
	}
	p.cancels = append(p.cancels, ref)
	return nil
}

func (p *fakePayments) RefundPartial(_ context.Context, ref string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, refundCall{ref: ref, amount: amount})
	return nil
}

func (p *fakePayments) VerifyWebhookSignature(_ []byte, signature string) bool {
	return p.validSig && signature != ""
}

func (p *fakePayments) ParseWebhookEvent([]byte) (*model.PaymentEvent, error) {
	if p.event == nil {
		return nil, errors.New("no event")
	}
	return p.event, nil
}

func (p *fakePayments) CreatePayoutOnboardingLink(_ context.Context, teacherID int64, accountID string) (*model.PayoutLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linkCalls = append(p.linkCalls, accountID)
	if p.linkErr != nil {
		return nil, p.linkErr
	}
	if accountID == "" {
		accountID = fmt.Sprintf("acct_%d", teacherID)
	}
	return &model.PayoutLink{URL: "https://connect.example.com/" + accountID, AccountID: accountID}, nil
}

func (p *fakePayments) captureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.captures)
}

type fakeVideo struct {
	mu sync.Mutex

	mintErr      error
	recordErr    error
	recordDelay  time.Duration
	webhookEvent *model.RecordingEvent
	webhookErr   error

	minted     []mintCall
	recordings []string
}

type mintCall struct {
	identity string
	room     string
	ttl      time.Duration
}

func (v *fakeVideo) MintAccessToken(identity, room string, _ model.SessionGrants, ttl time.Duration) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mintErr != nil {
		return "", v.mintErr
	}
	v.minted = append(v.minted, mintCall{identity: identity, room: room, ttl: ttl})
	return "token-" + identity + "-" + room, nil
}

func (v *fakeVideo) StartRecording(_ context.Context, room string) (string, error) {
	if v.recordDelay > 0 {
		time.Sleep(v.recordDelay)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.recordErr != nil {
		return "", v.recordErr
	}
	v.recordings = append(v.recordings, room)
	return fmt.Sprintf("EG_%s_%d", room, len(v.recordings)), nil
}

func (v *fakeVideo) ParseWebhook([]byte, string) (*model.RecordingEvent, error) {
	if v.webhookErr != nil {
		return nil, v.webhookErr
	}
	return v.webhookEvent, nil
}

func (v *fakeVideo) recordingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.recordings)
}

type fakeQueue struct {
	mu   sync.Mutex
	err  error
	jobs []model.SettlementJob
}

func (q *fakeQueue) Enqueue(ctx context.Context, job model.SettlementJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) all() []model.SettlementJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.SettlementJob(nil), q.jobs...)
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmed     []int64
	cancellations []model.RefundInfo
	warnings      []model.TeacherConductState
}

func (n *fakeNotifier) BookingConfirmed(booking *model.Booking, _ *model.Slot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, booking.ID)
}

func (n *fakeNotifier) CancellationNotice(_ *model.Booking, _ *model.Slot, info model.RefundInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, info)
}

func (n *fakeNotifier) StrikeWarning(_ int64, state model.TeacherConductState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, state)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

const (
	teacherID     int64 = 1
	parentID      int64 = 2
	studentID     int64 = 3
	otherParentID int64 = 4
	otherTeacher  int64 = 5
	testFeePct          = 15
)

type harness struct {
	db       *memDB
	payments *fakePayments
	video    *fakeVideo
	retries  *fakeQueue
	notifier *fakeNotifier
	clock    *testClock

	strikes    *StrikeService
	slots      *SlotService
	bookings   *BookingService
	admission  *AdmissionService
	settlement *SettlementService
	payouts    *PayoutService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMemDB()
	payout := "acct_teacher"
	db.users[teacherID] = model.User{ID: teacherID, Role: model.RoleTeacher, DisplayName: "Teacher", PayoutAccountID: &payout}
	db.users[otherTeacher] = model.User{ID: otherTeacher, Role: model.RoleTeacher, DisplayName: "No payout"}
	db.users[parentID] = model.User{ID: parentID, Role: model.RoleParent, DisplayName: "Parent"}
	db.users[otherParentID] = model.User{ID: otherParentID, Role: model.RoleParent, DisplayName: "Other"}
	db.students[studentID] = model.Student{ID: studentID, ParentID: parentID, Name: "Kid"}

	h := &harness{
		db:       db,
		payments: &fakePayments{validSig: true},
		video:    &fakeVideo{},
		retries:  &fakeQueue{},
		notifier: &fakeNotifier{},
		clock:    &testClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
	}

	logger := zap.NewNop()
	h.strikes = NewStrikeService(memConduct{db}, h.notifier, logger)
	h.slots = NewSlotService(memSlots{db}, memUsers{db}, h.strikes, logger)
	h.slots.clock = h.clock.Now
	h.bookings = NewBookingService(db, h.slots, h.strikes, memBookings{db}, memUsers{db}, memStudents{db},
		memCancellations{db}, h.payments, h.retries, h.notifier, testFeePct, logger)
	h.bookings.clock = h.clock.Now
	h.admission = NewAdmissionService(memBookings{db}, h.slots, memStudents{db}, h.video, logger)
	h.admission.clock = h.clock.Now
	h.settlement = NewSettlementService(db, memBookings{db}, h.slots, h.payments, h.video, h.retries, logger)
	h.settlement.clock = h.clock.Now
	h.payouts = NewPayoutService(memUsers{db}, h.payments, logger)

	return h
}

// addSlot создаёт часовой слот учителя, начинающийся через startIn от текущего времени
func (h *harness) addSlot(t *testing.T, teacher int64, startIn time.Duration) *model.Slot {
	t.Helper()
	start := h.clock.Now().Add(startIn)
	slot := &model.Slot{TeacherID: teacher, StartTime: start, EndTime: start.Add(time.Hour), PriceCents: 4000}
	require.NoError(t, memSlots{h.db}.Create(context.Background(), slot))
	return slot
}

// book бронирует новый слот и возвращает бронирование
func (h *harness) book(t *testing.T, startIn time.Duration) *model.Booking {
	t.Helper()
	slot := h.addSlot(t, teacherID, startIn)
	booking, err := h.bookings.CreateBooking(context.Background(), parentID, studentID, slot.ID)
	require.NoError(t, err)
	return booking
}
