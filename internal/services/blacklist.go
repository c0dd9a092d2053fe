package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// DefaultRemoteTimeout bounds every predicate, detail and filter call.
const DefaultRemoteTimeout = 3 * time.Second

// BlacklistOptions configures a BlacklistService. Zero values fall back to
// the package defaults.
type BlacklistOptions struct {
	CacheTTL       time.Duration
	FilterCacheTTL time.Duration
	RemoteTimeout  time.Duration
	Logger         *log.Logger
}

// BlacklistService answers "is this entity blocked?" for users, properties,
// IPs and email domains, and validates free text against content filters.
// Checks never fail: remote errors degrade to "not blocked".
type BlacklistService struct {
	store         database.Predicates
	cache         *CheckCache
	group         singleflight.Group
	filterTTL     time.Duration
	remoteTimeout time.Duration
	logger        *log.Logger
}

// NewBlacklistService builds the service around one long-lived store.
func NewBlacklistService(store database.Predicates, opts BlacklistOptions) *BlacklistService {
	if opts.FilterCacheTTL <= 0 {
		opts.FilterCacheTTL = DefaultFilterTTL
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &BlacklistService{
		store:         store,
		cache:         NewCheckCache(opts.CacheTTL),
		filterTTL:     opts.FilterCacheTTL,
		remoteTimeout: opts.RemoteTimeout,
		logger:        opts.Logger.WithPrefix("blacklist"),
	}
}

// lookupOutcome is the internal result of a check. err is set when a remote
// call failed; result then holds whatever was established before the failure.
type lookupOutcome struct {
	result models.CheckResult
	err    error
}

// failOpen is the one place remote errors become the safe default.
func (s *BlacklistService) failOpen(op string, o lookupOutcome) models.CheckResult {
	if o.err == nil {
		return o.result
	}
	s.logger.Error("check failed, allowing", "op", op, "err", o.err)
	if o.result.IsBlacklisted {
		return o.result
	}
	return models.NotBlacklisted(o.result.Category)
}

type predicateFunc func(ctx context.Context) (bool, error)

type detailFunc func(ctx context.Context) (*models.Entry, error)

// CheckUser checks the user id (and email) directly, then the email's domain.
// A domain hit is reported with the email_domain category.
func (s *BlacklistService) CheckUser(ctx context.Context, userID, email string) models.CheckResult {
	userID = strings.TrimSpace(userID)
	email = NormalizeEmail(email)
	key := CacheKey(string(models.CategoryUser), userID, email)

	if res, ok := s.cachedResult(key); ok {
		return res
	}

	gen := s.cache.Generation()
	o := s.shared(ctx, flightKey(key, gen), models.CategoryUser, func(ctx context.Context) lookupOutcome {
		direct := s.fetch(ctx, models.CategoryUser,
			func(ctx context.Context) (bool, error) { return s.store.IsUserBlacklisted(ctx, userID, email) },
			func(ctx context.Context) (*models.Entry, error) {
				return s.store.LatestActiveEntry(ctx, database.EntryLookup{Category: models.CategoryUser, UserID: userID, Email: email})
			},
		)
		if direct.err == nil && direct.result.IsBlacklisted {
			s.cache.Set(gen, key, direct.result)
			return direct
		}

		combined := lookupOutcome{result: models.NotBlacklisted(models.CategoryUser), err: direct.err}
		if domain := EmailDomain(email); domain != "" {
			byDomain := s.emailDomainOutcome(ctx, domain)
			if byDomain.result.IsBlacklisted {
				combined.result = byDomain.result
			}
			combined.err = errors.Join(direct.err, byDomain.err)
		}

		if combined.err == nil {
			s.cache.Set(gen, key, combined.result)
		}
		return combined
	})
	return s.failOpen("check_user", o)
}

// CheckProperty checks a single property listing.
func (s *BlacklistService) CheckProperty(ctx context.Context, propertyID int64) models.CheckResult {
	key := CacheKey(string(models.CategoryProperty), strconv.FormatInt(propertyID, 10))
	o := s.lookup(ctx, key, models.CategoryProperty,
		func(ctx context.Context) (bool, error) { return s.store.IsPropertyBlacklisted(ctx, propertyID) },
		func(ctx context.Context) (*models.Entry, error) {
			return s.store.LatestActiveEntry(ctx, database.EntryLookup{Category: models.CategoryProperty, PropertyID: propertyID})
		},
	)
	return s.failOpen("check_property", o)
}

// CheckIP checks an address against single-address and CIDR entries.
func (s *BlacklistService) CheckIP(ctx context.Context, ip string) models.CheckResult {
	ip = strings.TrimSpace(ip)
	key := CacheKey(string(models.CategoryIP), ip)
	o := s.lookup(ctx, key, models.CategoryIP,
		func(ctx context.Context) (bool, error) { return s.store.IsIPBlacklisted(ctx, ip) },
		func(ctx context.Context) (*models.Entry, error) {
			return s.store.LatestActiveEntry(ctx, database.EntryLookup{Category: models.CategoryIP, IPAddress: ip})
		},
	)
	return s.failOpen("check_ip", o)
}

// CheckEmailDomain checks a bare domain ("spamhost.com").
func (s *BlacklistService) CheckEmailDomain(ctx context.Context, domain string) models.CheckResult {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return models.NotBlacklisted(models.CategoryEmailDomain)
	}
	return s.failOpen("check_email_domain", s.emailDomainOutcome(ctx, domain))
}

func (s *BlacklistService) emailDomainOutcome(ctx context.Context, domain string) lookupOutcome {
	key := CacheKey(string(models.CategoryEmailDomain), domain)
	return s.lookup(ctx, key, models.CategoryEmailDomain,
		func(ctx context.Context) (bool, error) { return s.store.IsEmailDomainBlacklisted(ctx, domain) },
		func(ctx context.Context) (*models.Entry, error) {
			return s.store.LatestActiveEntry(ctx, database.EntryLookup{Category: models.CategoryEmailDomain, Domain: domain})
		},
	)
}

// ValidateContent tests text against every content filter in effect.
// Returns IsValid=true when the filters can't be loaded.
func (s *BlacklistService) ValidateContent(ctx context.Context, text string) models.ContentValidation {
	if strings.TrimSpace(text) == "" {
		return models.ContentValidation{IsValid: true}
	}

	rules, err := s.contentRules(ctx)
	if err != nil {
		s.logger.Error("content validation failed, allowing", "err", err)
		return models.ContentValidation{IsValid: true}
	}

	if pattern, matched := matchContent(rules, text); matched {
		return models.ContentValidation{IsValid: false, BlockedPattern: pattern}
	}
	return models.ContentValidation{IsValid: true}
}

// ClearCache drops every cached check result and the cached filter list.
// Lookups already in flight finish but can no longer populate the cache.
func (s *BlacklistService) ClearCache() {
	s.cache.Clear()
	s.logger.Debug("check cache cleared")
}

func (s *BlacklistService) contentRules(ctx context.Context) ([]contentRule, error) {
	if v, ok := s.cache.Get(contentFiltersKey); ok {
		if rules, ok := v.([]contentRule); ok {
			return rules, nil
		}
	}

	gen := s.cache.Generation()
	ch := s.group.DoChan(flightKey(contentFiltersKey, gen), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.remoteTimeout)
		defer cancel()

		filters, err := s.store.ActiveContentFilters(callCtx)
		if err != nil {
			return nil, fmt.Errorf("fetch content filters: %w", err)
		}
		rules := compileContentRules(filters, s.logger)
		s.cache.SetWithTTL(gen, contentFiltersKey, rules, s.filterTTL)
		return rules, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]contentRule), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *BlacklistService) cachedResult(key string) (models.CheckResult, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return models.CheckResult{}, false
	}
	res, ok := v.(models.CheckResult)
	return res, ok
}

// lookup serves key from the cache or runs the predicate once for all
// concurrent callers. Failed lookups are not cached.
func (s *BlacklistService) lookup(ctx context.Context, key string, c models.Category, predicate predicateFunc, detail detailFunc) lookupOutcome {
	if res, ok := s.cachedResult(key); ok {
		return lookupOutcome{result: res}
	}

	gen := s.cache.Generation()
	return s.shared(ctx, flightKey(key, gen), c, func(ctx context.Context) lookupOutcome {
		o := s.fetch(ctx, c, predicate, detail)
		if o.err == nil {
			s.cache.Set(gen, key, o.result)
		}
		return o
	})
}

// shared runs fn once for all concurrent callers of flight. fn gets a context
// that keeps ctx's values but not its cancellation, so one caller going away
// can't fail the lookup for the others. A caller whose ctx ends stops waiting.
func (s *BlacklistService) shared(ctx context.Context, flight string, c models.Category, fn func(ctx context.Context) lookupOutcome) lookupOutcome {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		return fn(detached), nil
	})

	select {
	case r := <-ch:
		return r.Val.(lookupOutcome)
	case <-ctx.Done():
		return lookupOutcome{result: models.NotBlacklisted(c), err: ctx.Err()}
	}
}

// fetch runs the boolean predicate and, only when it is true, the detail
// lookup. A failed or empty detail lookup still reports the block.
func (s *BlacklistService) fetch(ctx context.Context, c models.Category, predicate predicateFunc, detail detailFunc) lookupOutcome {
	callCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	blocked, err := predicate(callCtx)
	cancel()
	if err != nil {
		return lookupOutcome{result: models.NotBlacklisted(c), err: fmt.Errorf("%s predicate: %w", c, err)}
	}
	if !blocked {
		return lookupOutcome{result: models.NotBlacklisted(c)}
	}

	detailCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	entry, err := detail(detailCtx)
	if err != nil {
		s.logger.Warn("detail lookup failed, reporting block without details", "category", c, "err", err)
		entry = nil
	}
	return lookupOutcome{result: models.ResultFromEntry(c, entry)}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeDomain trims, lower-cases and strips a leading "@".
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
}

// EmailDomain returns the part after the last "@", or "" when there is none.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return NormalizeDomain(email[at+1:])
}
