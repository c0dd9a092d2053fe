package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/database/databasetest"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/charmbracelet/log"
)

var errRemoteDown = errors.New("remote down")

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestBlacklist(store database.Predicates) *BlacklistService {
	return NewBlacklistService(store, BlacklistOptions{
		CacheTTL:      time.Minute,
		RemoteTimeout: 200 * time.Millisecond,
		Logger:        discardLogger(),
	})
}

func TestCheckPropertyBlockedWithDetails(t *testing.T) {
	store := databasetest.NewMemoryStore()
	store.AddEntry(models.Entry{
		Category:   models.CategoryProperty,
		PropertyID: 42,
		Reason:     "fraudulent listing",
		IsActive:   true,
	})
	svc := newTestBlacklist(store)

	got := svc.CheckProperty(context.Background(), 42)
	if !got.IsBlacklisted || got.Category != models.CategoryProperty {
		t.Fatalf("CheckProperty(42) = %+v, want blocked property", got)
	}
	if got.Reason != "fraudulent listing" {
		t.Fatalf("reason = %q, want %q", got.Reason, "fraudulent listing")
	}
	if got.ExpiresAt != nil {
		t.Fatalf("expiresAt = %v, want nil for a permanent block", got.ExpiresAt)
	}
	if !got.HasDetails {
		t.Fatalf("expected details on the result")
	}

	// served from cache on the second call
	again := svc.CheckProperty(context.Background(), 42)
	if calls := store.PredicateCalls(models.CategoryProperty); calls != 1 {
		t.Fatalf("predicate calls = %d, want 1", calls)
	}
	if calls := store.DetailCalls(models.CategoryProperty); calls != 1 {
		t.Fatalf("detail calls = %d, want 1", calls)
	}
	if again.Reason != got.Reason || again.IsBlacklisted != got.IsBlacklisted {
		t.Fatalf("cached result %+v differs from %+v", again, got)
	}
}

func TestCheckSkipsDetailLookupWhenNotBlocked(t *testing.T) {
	store := databasetest.NewMemoryStore()
	svc := newTestBlacklist(store)

	got := svc.CheckIP(context.Background(), "203.0.113.9")
	if got.IsBlacklisted {
		t.Fatalf("CheckIP = %+v, want not blocked", got)
	}
	if calls := store.DetailCalls(models.CategoryIP); calls != 0 {
		t.Fatalf("detail calls = %d, want 0", calls)
	}
}

func TestChecksFailOpen(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		category models.Category
		check    func(*BlacklistService) models.CheckResult
	}{
		{"user", models.CategoryUser, func(s *BlacklistService) models.CheckResult {
			return s.CheckUser(ctx, "8b0e7a52-5c3c-4b8e-9d63-0d6f3f0f7a11", "")
		}},
		{"property", models.CategoryProperty, func(s *BlacklistService) models.CheckResult { return s.CheckProperty(ctx, 7) }},
		{"ip", models.CategoryIP, func(s *BlacklistService) models.CheckResult { return s.CheckIP(ctx, "198.51.100.4") }},
		{"email_domain", models.CategoryEmailDomain, func(s *BlacklistService) models.CheckResult {
			return s.CheckEmailDomain(ctx, "spamhost.com")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := databasetest.NewMemoryStore().WithPredicateError(errRemoteDown)
			svc := newTestBlacklist(store)

			got := tc.check(svc)
			if got.IsBlacklisted {
				t.Fatalf("result = %+v, want not blocked on remote failure", got)
			}
			if got.Category != tc.category {
				t.Fatalf("category = %q, want %q", got.Category, tc.category)
			}

			tc.check(svc)
			if calls := store.PredicateCalls(tc.category); calls != 2 {
				t.Fatalf("predicate calls = %d, want 2 (failures must not be cached)", calls)
			}
		})
	}
}

func TestCheckTimeoutFailsOpen(t *testing.T) {
	store := databasetest.NewMemoryStore().WithPredicateDelay(time.Second)
	store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 5, Reason: "spam", IsActive: true})
	svc := NewBlacklistService(store, BlacklistOptions{RemoteTimeout: 20 * time.Millisecond, Logger: discardLogger()})

	start := time.Now()
	got := svc.CheckProperty(context.Background(), 5)
	if got.IsBlacklisted {
		t.Fatalf("result = %+v, want not blocked after timeout", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("check took %v, want it bounded by the remote timeout", elapsed)
	}

	store.WithPredicateDelay(0)
	if got := svc.CheckProperty(context.Background(), 5); !got.IsBlacklisted {
		t.Fatalf("retry after timeout = %+v, want blocked", got)
	}
}

func TestDetailFailureStillReportsBlock(t *testing.T) {
	store := databasetest.NewMemoryStore().WithDetailError(errRemoteDown)
	store.AddEntry(models.Entry{Category: models.CategoryIP, IPAddress: "10.0.0.0/8", Reason: "abuse", IsActive: true})
	svc := newTestBlacklist(store)

	got := svc.CheckIP(context.Background(), "10.1.2.3")
	if !got.IsBlacklisted {
		t.Fatalf("result = %+v, want blocked", got)
	}
	if got.HasDetails || got.Reason != "" {
		t.Fatalf("result = %+v, want no details", got)
	}
}

func TestExpiredEntryNeverBlocks(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	store := databasetest.NewMemoryStore()
	store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 1, Reason: "old", IsActive: true, ExpiresAt: &past})
	store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 2, Reason: "inactive", IsActive: false})
	store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 3, Reason: "temporary", IsActive: true, ExpiresAt: &future})
	svc := newTestBlacklist(store)

	cases := []struct {
		id   int64
		want bool
	}{
		{1, false},
		{2, false},
		{3, true},
	}
	for _, tc := range cases {
		if got := svc.CheckProperty(context.Background(), tc.id); got.IsBlacklisted != tc.want {
			t.Errorf("CheckProperty(%d).IsBlacklisted = %v, want %v", tc.id, got.IsBlacklisted, tc.want)
		}
	}

	got := svc.CheckProperty(context.Background(), 3)
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(future) {
		t.Fatalf("expiresAt = %v, want %v", got.ExpiresAt, future)
	}
}

func TestClearCacheForcesRemoteCall(t *testing.T) {
	store := databasetest.NewMemoryStore()
	svc := newTestBlacklist(store)
	ctx := context.Background()

	svc.CheckIP(ctx, "192.0.2.1")
	svc.CheckIP(ctx, "192.0.2.1")
	if calls := store.PredicateCalls(models.CategoryIP); calls != 1 {
		t.Fatalf("predicate calls before clear = %d, want 1", calls)
	}

	svc.ClearCache()
	svc.CheckIP(ctx, "192.0.2.1")
	if calls := store.PredicateCalls(models.CategoryIP); calls != 2 {
		t.Fatalf("predicate calls after clear = %d, want 2", calls)
	}
}

func TestConcurrentMissesShareOneRemoteCall(t *testing.T) {
	store := databasetest.NewMemoryStore().WithPredicateDelay(50 * time.Millisecond)
	svc := newTestBlacklist(store)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.CheckProperty(context.Background(), 99)
		}()
	}
	wg.Wait()

	if calls := store.PredicateCalls(models.CategoryProperty); calls != 1 {
		t.Fatalf("predicate calls = %d, want 1", calls)
	}
}

func TestCheckUser(t *testing.T) {
	const (
		blockedUser = "1f1d2c9e-0b7a-4a53-9f0e-2f4c3a6b8d10"
		cleanUser   = "6a0c1b2d-3e4f-4a5b-8c7d-9e0f1a2b3c4d"
	)

	t.Run("direct block short-circuits the domain check", func(t *testing.T) {
		store := databasetest.NewMemoryStore()
		store.AddEntry(models.Entry{Category: models.CategoryUser, UserID: blockedUser, Reason: "chargebacks", IsActive: true})
		store.AddEntry(models.Entry{Category: models.CategoryEmailDomain, Domain: "spamhost.com", Reason: "known spam domain", IsActive: true})
		svc := newTestBlacklist(store)

		got := svc.CheckUser(context.Background(), blockedUser, "bob@spamhost.com")
		if !got.IsBlacklisted || got.Category != models.CategoryUser || got.Reason != "chargebacks" {
			t.Fatalf("CheckUser = %+v, want direct user block", got)
		}
		if calls := store.PredicateCalls(models.CategoryEmailDomain); calls != 0 {
			t.Fatalf("domain predicate calls = %d, want 0", calls)
		}
	})

	t.Run("falls back to the email domain", func(t *testing.T) {
		store := databasetest.NewMemoryStore()
		store.AddEntry(models.Entry{Category: models.CategoryEmailDomain, Domain: "spamhost.com", Reason: "known spam domain", IsActive: true})
		svc := newTestBlacklist(store)

		got := svc.CheckUser(context.Background(), cleanUser, "Bob@SpamHost.com")
		if !got.IsBlacklisted || got.Category != models.CategoryEmailDomain {
			t.Fatalf("CheckUser = %+v, want email_domain block", got)
		}
		if got.Reason != "known spam domain" {
			t.Fatalf("reason = %q, want %q", got.Reason, "known spam domain")
		}
	})

	t.Run("blocked by email on the user row", func(t *testing.T) {
		store := databasetest.NewMemoryStore()
		store.AddEntry(models.Entry{Category: models.CategoryUser, UserID: blockedUser, Email: "mallory@example.com", Reason: "fraud", IsActive: true})
		svc := newTestBlacklist(store)

		got := svc.CheckUser(context.Background(), cleanUser, "MALLORY@example.com")
		if !got.IsBlacklisted || got.Category != models.CategoryUser {
			t.Fatalf("CheckUser = %+v, want user block by email", got)
		}
	})

	t.Run("clean user without email skips the domain check", func(t *testing.T) {
		store := databasetest.NewMemoryStore()
		svc := newTestBlacklist(store)

		got := svc.CheckUser(context.Background(), cleanUser, "")
		if got.IsBlacklisted || got.Category != models.CategoryUser {
			t.Fatalf("CheckUser = %+v, want not blocked user", got)
		}
		if calls := store.PredicateCalls(models.CategoryEmailDomain); calls != 0 {
			t.Fatalf("domain predicate calls = %d, want 0", calls)
		}
	})

	t.Run("combined result is cached", func(t *testing.T) {
		store := databasetest.NewMemoryStore()
		svc := newTestBlacklist(store)

		svc.CheckUser(context.Background(), cleanUser, "alice@example.com")
		svc.CheckUser(context.Background(), cleanUser, "alice@example.com")
		if calls := store.PredicateCalls(models.CategoryUser); calls != 1 {
			t.Fatalf("user predicate calls = %d, want 1", calls)
		}
		if calls := store.PredicateCalls(models.CategoryEmailDomain); calls != 1 {
			t.Fatalf("domain predicate calls = %d, want 1", calls)
		}
	})
}

func TestCheckEmailDomainNormalizes(t *testing.T) {
	store := databasetest.NewMemoryStore()
	store.AddEntry(models.Entry{Category: models.CategoryEmailDomain, Domain: "SpamHost.com", Reason: "spam", IsActive: true})
	svc := newTestBlacklist(store)

	if got := svc.CheckEmailDomain(context.Background(), " @SPAMHOST.COM "); !got.IsBlacklisted {
		t.Fatalf("CheckEmailDomain = %+v, want blocked", got)
	}
	if got := svc.CheckEmailDomain(context.Background(), ""); got.IsBlacklisted || got.Category != models.CategoryEmailDomain {
		t.Fatalf("CheckEmailDomain(\"\") = %+v, want not blocked", got)
	}
}

func TestEmailDomain(t *testing.T) {
	cases := map[string]string{
		"bob@spamhost.com":       "spamhost.com",
		"weird@name@Example.ORG": "example.org",
		"no-at-sign":             "",
		"trailing@":              "",
	}
	for in, want := range cases {
		if got := EmailDomain(in); got != want {
			t.Errorf("EmailDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCacheKey(t *testing.T) {
	cases := []struct {
		resource string
		parts    []string
		want     string
	}{
		{"user", []string{"u1", "bob@example.com"}, "user:u1:bob@example.com"},
		{"user", []string{"u1", ""}, "user:u1:"},
		{"property", []string{"42"}, "property:42"},
		{"email_domain", []string{"spamhost.com"}, "email_domain:spamhost.com"},
	}
	for _, tc := range cases {
		if got := CacheKey(tc.resource, tc.parts...); got != tc.want {
			t.Errorf("CacheKey(%q, %v) = %q, want %q", tc.resource, tc.parts, got, tc.want)
		}
	}
}

func TestCheckCacheExpiry(t *testing.T) {
	c := NewCheckCache(30 * time.Millisecond)
	gen := c.Generation()
	c.Set(gen, "a", 1)
	c.SetWithTTL(gen, "b", 2, time.Minute)

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v.(int) != 2 {
		t.Fatalf("expected b to outlive the default TTL, got %v %v", v, ok)
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be dropped by Clear")
	}
}

func TestCheckCacheDropsWritesFromBeforeClear(t *testing.T) {
	c := NewCheckCache(time.Minute)
	before := c.Generation()
	c.Clear()

	if c.Set(before, "stale", 1) {
		t.Fatalf("Set with a generation from before Clear reported success")
	}
	if _, ok := c.Get("stale"); ok {
		t.Fatalf("stale write was stored")
	}
	if !c.Set(c.Generation(), "fresh", 2) {
		t.Fatalf("Set with the current generation was refused")
	}
}

// pausingStore holds the first property predicate after it has read the
// store, until release is closed.
type pausingStore struct {
	*databasetest.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		MemoryStore: databasetest.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (p *pausingStore) IsPropertyBlacklisted(ctx context.Context, propertyID int64) (bool, error) {
	blocked, err := p.MemoryStore.IsPropertyBlacklisted(ctx, propertyID)
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return blocked, err
}

func TestDeactivateDuringInFlightCheck(t *testing.T) {
	store := newPausingStore()
	entry := store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 42, Reason: "fraudulent listing", IsActive: true})
	svc := NewBlacklistService(store, BlacklistOptions{CacheTTL: time.Minute, RemoteTimeout: 5 * time.Second, Logger: discardLogger()})
	entries := NewEntryService(store.MemoryStore, svc, discardLogger())
	ctx := context.Background()

	inFlight := make(chan models.CheckResult, 1)
	go func() { inFlight <- svc.CheckProperty(ctx, 42) }()
	<-store.entered

	if _, err := entries.DeactivateEntry(ctx, models.CategoryProperty, entry.ID); err != nil {
		t.Fatalf("DeactivateEntry returned error: %v", err)
	}

	// must not join the lookup that read the entry before it was deactivated
	if got := svc.CheckProperty(ctx, 42); got.IsBlacklisted {
		t.Fatalf("check started after deactivation = %+v, want not blocked", got)
	}

	close(store.release)
	<-inFlight

	if got := svc.CheckProperty(ctx, 42); got.IsBlacklisted {
		t.Fatalf("later check = %+v, want not blocked (stale result cached)", got)
	}
	if calls := store.PredicateCalls(models.CategoryProperty); calls != 2 {
		t.Fatalf("predicate calls = %d, want 2", calls)
	}
}

func TestSharedLookupSurvivesCallerCancellation(t *testing.T) {
	store := databasetest.NewMemoryStore().WithPredicateDelay(200 * time.Millisecond)
	store.AddEntry(models.Entry{Category: models.CategoryProperty, PropertyID: 7, Reason: "spam", IsActive: true})
	svc := NewBlacklistService(store, BlacklistOptions{RemoteTimeout: 2 * time.Second, Logger: discardLogger()})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan models.CheckResult, 1)
	go func() { first <- svc.CheckProperty(firstCtx, 7) }()

	deadline := time.Now().Add(time.Second)
	for store.PredicateCalls(models.CategoryProperty) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first lookup never reached the store")
		}
		time.Sleep(time.Millisecond)
	}

	second := make(chan models.CheckResult, 1)
	go func() { second <- svc.CheckProperty(context.Background(), 7) }()
	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	if got := <-first; got.IsBlacklisted {
		t.Fatalf("cancelled caller = %+v, want the fail-open default", got)
	}
	if got := <-second; !got.IsBlacklisted {
		t.Fatalf("other caller = %+v, want blocked", got)
	}
	if calls := store.PredicateCalls(models.CategoryProperty); calls != 1 {
		t.Fatalf("predicate calls = %d, want 1", calls)
	}
}
