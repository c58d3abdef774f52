package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
	"github.com/palisade-forum/palisade/internal/repository"
)

// =============================================================================
// Mock User Repository
// =============================================================================

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	for _, u := range m.users {
		if u.VerificationToken != "" && u.VerificationToken == token {
			copy := *u
			return &copy, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) RecordLoginFailure(ctx context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.FailedLoginAttempts++
	u.LastFailedLogin = &at
	return nil
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastFailedLogin = nil
	u.LastLogin = &at
	return nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = true
	u.VerificationToken = ""
	return nil
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *MockUserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsBanned = banned
	return nil
}

func (m *MockUserRepository) SetRoles(ctx context.Context, id int64, isAdmin, hasPrivateAccess bool) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsAdmin = isAdmin
	u.HasPrivateAccess = hasPrivateAccess
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.UserStats], error) {
	var items []*domain.UserStats
	for _, u := range m.users {
		items = append(items, &domain.UserStats{User: *u})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return &repository.ListResult[domain.UserStats]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

// =============================================================================
// Mock Thread / Reply Repositories
// =============================================================================

// MockThreadRepository is a mock implementation of repository.ThreadRepository.
type MockThreadRepository struct {
	threads map[int64]*domain.Thread
	nextID  int64
}

func NewMockThreadRepository() *MockThreadRepository {
	return &MockThreadRepository{
		threads: make(map[int64]*domain.Thread),
		nextID:  1,
	}
}

func (m *MockThreadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	thread.ID = m.nextID
	m.nextID++
	m.threads[thread.ID] = thread
	return nil
}

func (m *MockThreadRepository) GetByID(ctx context.Context, id int64) (*domain.Thread, error) {
	t, ok := m.threads[id]
	if !ok || t.IsDeleted {
		return nil, domain.ErrThreadNotFound
	}
	copy := *t
	return &copy, nil
}

func (m *MockThreadRepository) List(ctx context.Context, private bool) ([]*domain.Thread, error) {
	var result []*domain.Thread
	for _, t := range m.threads {
		if !t.IsDeleted && t.IsPrivate == private {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockThreadRepository) ListAll(ctx context.Context, limit int) ([]*domain.Thread, error) {
	var result []*domain.Thread
	for _, t := range m.threads {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockThreadRepository) IncrementViews(ctx context.Context, id int64) error {
	t, ok := m.threads[id]
	if !ok {
		return domain.ErrThreadNotFound
	}
	t.Views++
	return nil
}

func (m *MockThreadRepository) SoftDelete(ctx context.Context, id int64) error {
	t, ok := m.threads[id]
	if !ok || t.IsDeleted {
		return domain.ErrThreadNotFound
	}
	t.IsDeleted = true
	return nil
}

var _ repository.ThreadRepository = (*MockThreadRepository)(nil)

// MockReplyRepository is a mock implementation of repository.ReplyRepository.
type MockReplyRepository struct {
	replies map[int64]*domain.Reply
	nextID  int64
}

func NewMockReplyRepository() *MockReplyRepository {
	return &MockReplyRepository{
		replies: make(map[int64]*domain.Reply),
		nextID:  1,
	}
}

func (m *MockReplyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	reply.ID = m.nextID
	m.nextID++
	m.replies[reply.ID] = reply
	return nil
}

func (m *MockReplyRepository) ListByThread(ctx context.Context, threadID int64) ([]*domain.Reply, error) {
	var result []*domain.Reply
	for _, r := range m.replies {
		if r.ThreadID == threadID && !r.IsDeleted {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockReplyRepository) SoftDelete(ctx context.Context, id int64) error {
	r, ok := m.replies[id]
	if !ok || r.IsDeleted {
		return domain.ErrReplyNotFound
	}
	r.IsDeleted = true
	return nil
}

var _ repository.ReplyRepository = (*MockReplyRepository)(nil)

// =============================================================================
// Mock Access Key Repository
// =============================================================================

// MockAccessKeyRepository is a mock implementation of repository.AccessKeyRepository.
type MockAccessKeyRepository struct {
	keys   map[int64]*domain.AccessKey
	nextID int64
}

func NewMockAccessKeyRepository() *MockAccessKeyRepository {
	return &MockAccessKeyRepository{
		keys:   make(map[int64]*domain.AccessKey),
		nextID: 1,
	}
}

func (m *MockAccessKeyRepository) Create(ctx context.Context, key *domain.AccessKey) error {
	key.ID = m.nextID
	m.nextID++
	m.keys[key.ID] = key
	return nil
}

func (m *MockAccessKeyRepository) GetActiveByCode(ctx context.Context, code string) (*domain.AccessKey, error) {
	for _, k := range m.keys {
		if k.Code == code && k.IsActive && k.UsedBy == nil {
			copy := *k
			return &copy, nil
		}
	}
	return nil, domain.ErrAccessKeyInvalid
}

func (m *MockAccessKeyRepository) Redeem(ctx context.Context, code string, userID int64, at time.Time) error {
	for _, k := range m.keys {
		if k.Code == code {
			if !k.IsActive || k.UsedBy != nil {
				return domain.ErrAccessKeyUsed
			}
			k.IsActive = false
			k.UsedBy = &userID
			k.UsedAt = &at
			return nil
		}
	}
	return domain.ErrAccessKeyUsed
}

func (m *MockAccessKeyRepository) List(ctx context.Context) ([]*domain.AccessKey, error) {
	var result []*domain.AccessKey
	for _, k := range m.keys {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockAccessKeyRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.keys[id]; !ok {
		return domain.ErrAccessKeyNotFound
	}
	delete(m.keys, id)
	return nil
}

var _ repository.AccessKeyRepository = (*MockAccessKeyRepository)(nil)

// =============================================================================
// Mock IP Ban Repository
// =============================================================================

// MockIPBanRepository is a mock implementation of repository.IPBanRepository.
type MockIPBanRepository struct {
	bans   map[int64]*domain.IPBan
	nextID int64
}

func NewMockIPBanRepository() *MockIPBanRepository {
	return &MockIPBanRepository{
		bans:   make(map[int64]*domain.IPBan),
		nextID: 1,
	}
}

func (m *MockIPBanRepository) Create(ctx context.Context, ban *domain.IPBan) error {
	for _, b := range m.bans {
		if b.IPAddress == ban.IPAddress {
			return domain.ErrIPAlreadyBanned
		}
	}
	ban.ID = m.nextID
	m.nextID++
	m.bans[ban.ID] = ban
	return nil
}

func (m *MockIPBanRepository) GetActiveByIP(ctx context.Context, ip string, now time.Time) (*domain.IPBan, error) {
	for _, b := range m.bans {
		if b.IPAddress == ip && b.Active(now) {
			copy := *b
			return &copy, nil
		}
	}
	return nil, domain.ErrIPBanNotFound
}

func (m *MockIPBanRepository) List(ctx context.Context) ([]*domain.IPBan, error) {
	var result []*domain.IPBan
	for _, b := range m.bans {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockIPBanRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.bans[id]; !ok {
		return domain.ErrIPBanNotFound
	}
	delete(m.bans, id)
	return nil
}

var _ repository.IPBanRepository = (*MockIPBanRepository)(nil)

// =============================================================================
// Mock Event Repository
// =============================================================================

// MockEventRepository is a mock implementation of repository.EventRepository.
type MockEventRepository struct {
	events    []*domain.Event
	nextID    int64
	insertErr error
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{nextID: 1}
}

func (m *MockEventRepository) Insert(ctx context.Context, event *domain.Event) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	event.ID = m.nextID
	m.nextID++
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventRepository) Query(ctx context.Context, filter repository.EventFilter) (*repository.ListResult[domain.Event], error) {
	var matched []*domain.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		matched = append(matched, e)
	}

	total := int64(len(m.events))
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return &repository.ListResult[domain.Event]{
		Items:  matched,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

func (m *MockEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []*domain.Event
	var removed int64
	for _, e := range m.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

func (m *MockEventRepository) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	counts := make(map[domain.Severity]int64)
	for _, e := range m.events {
		counts[e.Severity]++
	}
	return counts, nil
}

// lastEvent returns the most recently inserted event, or nil.
func (m *MockEventRepository) lastEvent() *domain.Event {
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

// hasEvent reports whether an event of the given type was recorded.
func (m *MockEventRepository) hasEvent(eventType string) bool {
	for _, e := range m.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

var _ repository.EventRepository = (*MockEventRepository)(nil)

// =============================================================================
// Mock Stats Repository
// =============================================================================

// MockStatsRepository is a mock implementation of repository.StatsRepository.
type MockStatsRepository struct {
	stats repository.ForumStats
}

func (m *MockStatsRepository) ForumStats(ctx context.Context) (*repository.ForumStats, error) {
	copy := m.stats
	return &copy, nil
}

var _ repository.StatsRepository = (*MockStatsRepository)(nil)

// =============================================================================
// Helpers
// =============================================================================

// newTestEventService builds an EventService on a mock repository.
func newTestEventService(repo repository.EventRepository) *EventService {
	return NewEventService(repo, lock.NewNoOpLocker(), nil, domain.DefaultEventRetention, 1000, zerolog.Nop())
}
