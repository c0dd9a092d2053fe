package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
)

type tableSpec struct {
	table      string
	keyColumns string
	intID      bool
}

var tables = map[models.Category]tableSpec{
	models.CategoryUser:        {table: "user_blacklist", keyColumns: "user_id::text, COALESCE(email, '')"},
	models.CategoryProperty:    {table: "property_blacklist", keyColumns: "property_id", intID: true},
	models.CategoryIP:          {table: "ip_blacklist", keyColumns: "abbrev(ip_address)"},
	models.CategoryEmailDomain: {table: "email_domain_blacklist", keyColumns: "domain"},
	models.CategoryContent:     {table: "content_filters", keyColumns: "pattern, match_type", intID: true},
}

const inEffectClause = "is_active AND (expires_at IS NULL OR expires_at > NOW())"

func (t tableSpec) columns() string {
	return "id::text, " + t.keyColumns + ", reason, blocked_at, expires_at, is_active, COALESCE(notes, ''), created_at, updated_at"
}

func specFor(c models.Category) (tableSpec, error) {
	spec, ok := tables[c]
	if !ok {
		return tableSpec{}, models.ErrUnknownCategory
	}
	return spec, nil
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on top of the tables and SQL functions
// created by InitPostgresTables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps a connected pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) predicate(ctx context.Context, query string, args ...any) (bool, error) {
	var blocked bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&blocked); err != nil {
		return false, err
	}
	return blocked, nil
}

func (s *PostgresStore) IsUserBlacklisted(ctx context.Context, userID, email string) (bool, error) {
	return s.predicate(ctx, `SELECT is_user_blacklisted($1, $2)`, userID, nullString(email))
}

func (s *PostgresStore) IsPropertyBlacklisted(ctx context.Context, propertyID int64) (bool, error) {
	return s.predicate(ctx, `SELECT is_property_blacklisted($1)`, propertyID)
}

func (s *PostgresStore) IsIPBlacklisted(ctx context.Context, ip string) (bool, error) {
	return s.predicate(ctx, `SELECT is_ip_blacklisted($1::inet)`, ip)
}

func (s *PostgresStore) IsEmailDomainBlacklisted(ctx context.Context, domain string) (bool, error) {
	return s.predicate(ctx, `SELECT is_email_domain_blacklisted($1)`, domain)
}

func (s *PostgresStore) LatestActiveEntry(ctx context.Context, q EntryLookup) (*models.Entry, error) {
	spec, err := specFor(q.Category)
	if err != nil {
		return nil, err
	}

	var (
		match string
		args  []any
	)
	switch q.Category {
	case models.CategoryUser:
		match = "(user_id = $1 OR ($2 <> '' AND LOWER(email) = LOWER($2)))"
		args = []any{q.UserID, q.Email}
	case models.CategoryProperty:
		match = "property_id = $1"
		args = []any{q.PropertyID}
	case models.CategoryIP:
		match = "$1::inet <<= ip_address"
		args = []any{q.IPAddress}
	case models.CategoryEmailDomain:
		match = "LOWER(domain) = LOWER($1)"
		args = []any{q.Domain}
	default:
		return nil, fmt.Errorf("no detail lookup for category %q", q.Category)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND %s ORDER BY created_at DESC LIMIT 1`,
		spec.columns(), spec.table, match, inEffectClause)

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, args...), q.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PostgresStore) ActiveContentFilters(ctx context.Context) ([]models.Entry, error) {
	spec := tables[models.CategoryContent]
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC`, spec.columns(), spec.table, inEffectClause)
	return s.queryEntries(ctx, models.CategoryContent, query)
}

func (s *PostgresStore) GetEntry(ctx context.Context, c models.Category, id string) (*models.Entry, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	idArg, err := spec.idArg(id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, spec.columns(), spec.table)
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, idArg), c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s entry %s: %w", c, id, err)
	}
	return entry, nil
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, c models.Category, id string, u models.EntryUpdate) (*models.Entry, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	idArg, err := spec.idArg(id)
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Reason != nil {
		set("reason", *u.Reason)
	}
	if u.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if u.ExpiresAt != nil {
		set("expires_at", *u.ExpiresAt)
	}
	if u.IsActive != nil {
		set("is_active", *u.IsActive)
	}
	if u.Notes != nil {
		set("notes", *u.Notes)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, idArg)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		spec.table, strings.Join(sets, ", "), len(args), spec.columns())

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, args...), c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s entry %s: %w", c, id, err)
	}
	return entry, nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, e models.Entry) (*models.Entry, error) {
	spec, err := specFor(e.Category)
	if err != nil {
		return nil, err
	}

	var (
		columns []string
		args    []any
	)
	switch e.Category {
	case models.CategoryUser:
		columns = []string{"user_id", "email"}
		args = []any{e.UserID, nullString(e.Email)}
	case models.CategoryProperty:
		columns = []string{"property_id"}
		args = []any{e.PropertyID}
	case models.CategoryIP:
		columns = []string{"ip_address"}
		args = []any{e.IPAddress}
	case models.CategoryEmailDomain:
		columns = []string{"domain"}
		args = []any{strings.ToLower(e.Domain)}
	case models.CategoryContent:
		columns = []string{"pattern", "match_type"}
		args = []any{e.Pattern, string(e.MatchType)}
	}

	blockedAt := e.BlockedAt
	if blockedAt.IsZero() {
		blockedAt = time.Now().UTC()
	}
	var expiresAt sql.NullTime
	if e.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *e.ExpiresAt, Valid: true}
	}
	columns = append(columns, "reason", "blocked_at", "expires_at", "is_active", "notes")
	args = append(args, e.Reason, blockedAt, expiresAt, e.IsActive, nullString(e.Notes))

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		spec.table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), spec.columns())

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, args...), e.Category)
	if err != nil {
		return nil, fmt.Errorf("create %s entry: %w", e.Category, err)
	}
	return entry, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, c models.Category, opts ListOptions) ([]models.Entry, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}

	where := ""
	if opts.ActiveOnly {
		where = "WHERE " + inEffectClause
	}
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, spec.columns(), spec.table, where)
	return s.queryEntries(ctx, c, query, opts.Limit, opts.Offset)
}

func (s *PostgresStore) ListPublicProperties(ctx context.Context, offset, limit int) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), property_type, price, city,
		       COALESCE(address, ''), bedrooms, bathrooms, COALESCE(image_url, ''), created_at
		FROM properties
		WHERE is_public = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	properties := make([]models.Property, 0, limit)
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.PropertyType, &p.Price, &p.City,
			&p.Address, &p.Bedrooms, &p.Bathrooms, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func (s *PostgresStore) queryEntries(ctx context.Context, c models.Category, query string, args ...any) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows, c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, c models.Category) (*models.Entry, error) {
	e := models.Entry{Category: c}
	var (
		expiresAt sql.NullTime
		matchType string
	)

	dest := []any{&e.ID}
	switch c {
	case models.CategoryUser:
		dest = append(dest, &e.UserID, &e.Email)
	case models.CategoryProperty:
		dest = append(dest, &e.PropertyID)
	case models.CategoryIP:
		dest = append(dest, &e.IPAddress)
	case models.CategoryEmailDomain:
		dest = append(dest, &e.Domain)
	case models.CategoryContent:
		dest = append(dest, &e.Pattern, &matchType)
	}
	dest = append(dest, &e.Reason, &e.BlockedAt, &expiresAt, &e.IsActive, &e.Notes, &e.CreatedAt, &e.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	if matchType != "" {
		e.MatchType = models.MatchType(matchType)
	}
	return &e, nil
}

func (t tableSpec) idArg(id string) (any, error) {
	if !t.intID {
		return id, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrEntryNotFound
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresStore) CreateInquiry(ctx context.Context, q models.Inquiry) (*models.Inquiry, error) {
	var propertyID sql.NullInt64
	if q.PropertyID != nil {
		propertyID = sql.NullInt64{Int64: *q.PropertyID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inquiries (name, email, phone, message, property_id, user_id, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text, created_at
	`, q.Name, q.Email, nullString(q.Phone), q.Message, propertyID, nullString(q.UserID), nullString(q.IPAddress)).
		Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert inquiry: %w", err)
	}
	return &q, nil
}

func (s *PostgresStore) ListInquiries(ctx context.Context, limit, offset int) ([]models.Inquiry, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inquiries`).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Query inquiries (sorted by created_at descending - newest first)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, created_at, name, email, COALESCE(phone, ''), message, property_id,
		       COALESCE(user_id::text, ''), COALESCE(ip_address, '')
		FROM inquiries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	inquiries := make([]models.Inquiry, 0)
	for rows.Next() {
		var (
			q          models.Inquiry
			propertyID sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &q.CreatedAt, &q.Name, &q.Email, &q.Phone, &q.Message, &propertyID, &q.UserID, &q.IPAddress); err != nil {
			return nil, 0, err
		}
		if propertyID.Valid {
			id := propertyID.Int64
			q.PropertyID = &id
		}
		inquiries = append(inquiries, q)
	}
	return inquiries, total, rows.Err()
}
