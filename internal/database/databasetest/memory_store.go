package databasetest

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory database.Store used for unit testing the
// services and handlers without a running PostgreSQL instance. It mirrors the semantics of
// the SQL functions, counts calls, and can be told to fail.
type MemoryStore struct {
	mu sync.Mutex

	entries    map[models.Category][]models.Entry
	properties []models.Property
	inquiries  []models.Inquiry
	nextID     int64

	predicateCalls map[models.Category]int
	detailCalls    map[models.Category]int
	filterCalls    int
	pageRequests   []PageRequest

	predicateErr   error
	predicateDelay time.Duration
	detailErr      error
	filterErr      error
	propertyErr    error
	propertyErrAt  int

	now func() time.Time
}

// PageRequest records one ListPublicProperties call.
type PageRequest struct {
	Offset int
	Limit  int
}

var _ database.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:        make(map[models.Category][]models.Entry),
		predicateCalls: make(map[models.Category]int),
		detailCalls:    make(map[models.Category]int),
		now:            time.Now,
	}
}

// WithClock overrides the clock used for the in-effect test.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// WithPredicateError makes every boolean predicate fail. Pass nil to reset.
func (m *MemoryStore) WithPredicateError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predicateErr = err
	return m
}

// WithPredicateDelay makes every predicate wait d, or until ctx is done.
func (m *MemoryStore) WithPredicateDelay(d time.Duration) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predicateDelay = d
	return m
}

// WithDetailError makes LatestActiveEntry fail.
func (m *MemoryStore) WithDetailError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailErr = err
	return m
}

// WithFilterError makes ActiveContentFilters fail.
func (m *MemoryStore) WithFilterError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterErr = err
	return m
}

// WithPropertyError makes ListPublicProperties fail starting with the
// (after+1)-th call. after=0 fails the first page.
func (m *MemoryStore) WithPropertyError(err error, after int) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propertyErr = err
	m.propertyErrAt = after
	return m
}

// AddEntry inserts e, assigning an id and timestamps when missing.
func (m *MemoryStore) AddEntry(e models.Entry) models.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(e)
}

// AddProperties appends properties. They are served newest first by CreatedAt.
func (m *MemoryStore) AddProperties(props ...models.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties = append(m.properties, props...)
	sort.SliceStable(m.properties, func(i, j int) bool {
		if m.properties[i].CreatedAt.Equal(m.properties[j].CreatedAt) {
			return m.properties[i].ID > m.properties[j].ID
		}
		return m.properties[i].CreatedAt.After(m.properties[j].CreatedAt)
	})
}

// PredicateCalls returns how many boolean predicate calls were made for c.
func (m *MemoryStore) PredicateCalls(c models.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predicateCalls[c]
}

// DetailCalls returns how many detail lookups were made for c.
func (m *MemoryStore) DetailCalls(c models.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailCalls[c]
}

// FilterCalls returns how many times the content filters were fetched.
func (m *MemoryStore) FilterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterCalls
}

// PageRequests returns a copy of every property page request, in order.
func (m *MemoryStore) PageRequests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PageRequest, len(m.pageRequests))
	copy(out, m.pageRequests)
	return out
}

// EntryCount returns the number of rows held for c, active or not.
func (m *MemoryStore) EntryCount(c models.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[c])
}

func (m *MemoryStore) enterPredicate(ctx context.Context, c models.Category) error {
	m.mu.Lock()
	m.predicateCalls[c]++
	delay, err := m.predicateDelay, m.predicateErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *MemoryStore) anyInEffect(c models.Category, match func(models.Entry) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for i := range m.entries[c] {
		if m.entries[c][i].InEffect(now) && match(m.entries[c][i]) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) IsUserBlacklisted(ctx context.Context, userID, email string) (bool, error) {
	if err := m.enterPredicate(ctx, models.CategoryUser); err != nil {
		return false, err
	}
	return m.anyInEffect(models.CategoryUser, userMatcher(userID, email)), nil
}

func (m *MemoryStore) IsPropertyBlacklisted(ctx context.Context, propertyID int64) (bool, error) {
	if err := m.enterPredicate(ctx, models.CategoryProperty); err != nil {
		return false, err
	}
	return m.anyInEffect(models.CategoryProperty, func(e models.Entry) bool { return e.PropertyID == propertyID }), nil
}

func (m *MemoryStore) IsIPBlacklisted(ctx context.Context, ip string) (bool, error) {
	if err := m.enterPredicate(ctx, models.CategoryIP); err != nil {
		return false, err
	}
	return m.anyInEffect(models.CategoryIP, func(e models.Entry) bool { return ipMatches(e.IPAddress, ip) }), nil
}

func (m *MemoryStore) IsEmailDomainBlacklisted(ctx context.Context, domain string) (bool, error) {
	if err := m.enterPredicate(ctx, models.CategoryEmailDomain); err != nil {
		return false, err
	}
	return m.anyInEffect(models.CategoryEmailDomain, func(e models.Entry) bool { return strings.EqualFold(e.Domain, domain) }), nil
}

func (m *MemoryStore) LatestActiveEntry(_ context.Context, q database.EntryLookup) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detailCalls[q.Category]++
	if m.detailErr != nil {
		return nil, m.detailErr
	}

	var match func(models.Entry) bool
	switch q.Category {
	case models.CategoryUser:
		match = userMatcher(q.UserID, q.Email)
	case models.CategoryProperty:
		match = func(e models.Entry) bool { return e.PropertyID == q.PropertyID }
	case models.CategoryIP:
		match = func(e models.Entry) bool { return ipMatches(e.IPAddress, q.IPAddress) }
	case models.CategoryEmailDomain:
		match = func(e models.Entry) bool { return strings.EqualFold(e.Domain, q.Domain) }
	default:
		return nil, models.ErrUnknownCategory
	}

	now := m.now()
	var latest *models.Entry
	for i := range m.entries[q.Category] {
		e := m.entries[q.Category][i]
		if !e.InEffect(now) || !match(e) {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = &e
		}
	}
	return latest, nil
}

func (m *MemoryStore) ActiveContentFilters(_ context.Context) ([]models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.filterCalls++
	if m.filterErr != nil {
		return nil, m.filterErr
	}

	now := m.now()
	filters := make([]models.Entry, 0)
	for _, e := range m.entries[models.CategoryContent] {
		if e.InEffect(now) {
			filters = append(filters, e)
		}
	}
	return filters, nil
}

func (m *MemoryStore) GetEntry(_ context.Context, c models.Category, id string) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.indexLocked(c, id)
	if err != nil {
		return nil, err
	}
	e := m.entries[c][i]
	return &e, nil
}

func (m *MemoryStore) UpdateEntry(_ context.Context, c models.Category, id string, u models.EntryUpdate) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.indexLocked(c, id)
	if err != nil {
		return nil, err
	}
	u.Apply(&m.entries[c][i], m.now().UTC())
	e := m.entries[c][i]
	return &e, nil
}

func (m *MemoryStore) CreateEntry(_ context.Context, e models.Entry) (*models.Entry, error) {
	if _, err := models.ParseCategory(string(e.Category)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := m.insertLocked(e)
	return &created, nil
}

func (m *MemoryStore) ListEntries(_ context.Context, c models.Category, opts database.ListOptions) ([]models.Entry, error) {
	if _, err := models.ParseCategory(string(c)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rows := make([]models.Entry, 0)
	for _, e := range m.entries[c] {
		if opts.ActiveOnly && !e.InEffect(now) {
			continue
		}
		rows = append(rows, e)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return page(rows, opts.Offset, opts.Limit), nil
}

func (m *MemoryStore) ListPublicProperties(_ context.Context, offset, limit int) ([]models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageRequests = append(m.pageRequests, PageRequest{Offset: offset, Limit: limit})
	if m.propertyErr != nil && len(m.pageRequests) > m.propertyErrAt {
		return nil, m.propertyErr
	}
	return page(m.properties, offset, limit), nil
}

func (m *MemoryStore) CreateInquiry(_ context.Context, q models.Inquiry) (*models.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.ID = uuid.NewString()
	q.CreatedAt = m.now().UTC()
	m.inquiries = append(m.inquiries, q)
	return &q, nil
}

func (m *MemoryStore) ListInquiries(_ context.Context, limit, offset int) ([]models.Inquiry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newest := make([]models.Inquiry, len(m.inquiries))
	for i, q := range m.inquiries {
		newest[len(m.inquiries)-1-i] = q
	}
	return page(newest, offset, limit), int64(len(m.inquiries)), nil
}

func (m *MemoryStore) insertLocked(e models.Entry) models.Entry {
	now := m.now().UTC()
	if e.ID == "" {
		if integerID(e.Category) {
			m.nextID++
			e.ID = strconv.FormatInt(m.nextID, 10)
		} else {
			e.ID = uuid.NewString()
		}
	}
	if e.BlockedAt.IsZero() {
		e.BlockedAt = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Category == models.CategoryContent && e.MatchType == "" {
		e.MatchType = models.MatchContains
	}
	e.Domain = strings.ToLower(e.Domain)
	m.entries[e.Category] = append(m.entries[e.Category], e)
	return e
}

func (m *MemoryStore) indexLocked(c models.Category, id string) (int, error) {
	if _, err := models.ParseCategory(string(c)); err != nil {
		return 0, err
	}
	for i := range m.entries[c] {
		if m.entries[c][i].ID == id {
			return i, nil
		}
	}
	return 0, database.ErrEntryNotFound
}

// integerID mirrors the serial keys of the property and content tables.
func integerID(c models.Category) bool {
	return c == models.CategoryProperty || c == models.CategoryContent
}

func userMatcher(userID, email string) func(models.Entry) bool {
	return func(e models.Entry) bool {
		if e.UserID == userID {
			return true
		}
		return email != "" && strings.EqualFold(e.Email, email)
	}
}

// ipMatches follows inet <<= semantics: the entry is either a host address
// or a CIDR range containing ip.
func ipMatches(entry, ip string) bool {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return false
	}
	if strings.Contains(entry, "/") {
		_, network, err := net.ParseCIDR(entry)
		return err == nil && network.Contains(addr)
	}
	blocked := net.ParseIP(entry)
	return blocked != nil && blocked.Equal(addr)
}

func page[T any](rows []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]T, end-offset)
	copy(out, rows[offset:end])
	return out
}
