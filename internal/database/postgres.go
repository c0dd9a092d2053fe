package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
)

// ConnectPostgres opens the pool, pings it and makes sure the schema exists.
func ConnectPostgres(ctx context.Context, postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitPostgresTables creates the moderation tables, the boolean lookup
// functions and the properties table if they don't exist.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			title VARCHAR(255) NOT NULL,
			description TEXT,
			property_type VARCHAR(50) NOT NULL DEFAULT 'residential',
			price NUMERIC(14, 2) NOT NULL DEFAULT 0,
			city VARCHAR(120) NOT NULL DEFAULT '',
			address TEXT,
			bedrooms INTEGER NOT NULL DEFAULT 0,
			bathrooms INTEGER NOT NULL DEFAULT 0,
			image_url TEXT,
			is_public BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS user_blacklist (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			email VARCHAR(320),
			reason TEXT NOT NULL,
			blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS property_blacklist (
			id BIGSERIAL PRIMARY KEY,
			property_id BIGINT NOT NULL,
			reason TEXT NOT NULL,
			blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ip_blacklist (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			ip_address INET NOT NULL,
			reason TEXT NOT NULL,
			blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS email_domain_blacklist (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			domain VARCHAR(255) NOT NULL,
			reason TEXT NOT NULL,
			blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS content_filters (
			id BIGSERIAL PRIMARY KEY,
			pattern TEXT NOT NULL,
			match_type VARCHAR(20) NOT NULL DEFAULT 'contains',
			reason TEXT NOT NULL,
			blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS inquiries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			name VARCHAR(120) NOT NULL,
			email VARCHAR(320) NOT NULL,
			phone VARCHAR(40),
			message TEXT NOT NULL,
			property_id BIGINT,
			user_id UUID,
			ip_address VARCHAR(45)
		)`,

		// Boolean predicates, called as remote procedures by the check service
		`CREATE OR REPLACE FUNCTION is_user_blacklisted(p_user_id UUID, p_email TEXT)
		RETURNS BOOLEAN LANGUAGE sql STABLE AS $$
			SELECT EXISTS (
				SELECT 1 FROM user_blacklist
				WHERE (user_id = p_user_id OR (p_email IS NOT NULL AND LOWER(email) = LOWER(p_email)))
				  AND is_active AND (expires_at IS NULL OR expires_at > NOW())
			)
		$$`,
		`CREATE OR REPLACE FUNCTION is_property_blacklisted(p_property_id BIGINT)
		RETURNS BOOLEAN LANGUAGE sql STABLE AS $$
			SELECT EXISTS (
				SELECT 1 FROM property_blacklist
				WHERE property_id = p_property_id
				  AND is_active AND (expires_at IS NULL OR expires_at > NOW())
			)
		$$`,
		`CREATE OR REPLACE FUNCTION is_ip_blacklisted(p_ip INET)
		RETURNS BOOLEAN LANGUAGE sql STABLE AS $$
			SELECT EXISTS (
				SELECT 1 FROM ip_blacklist
				WHERE p_ip <<= ip_address
				  AND is_active AND (expires_at IS NULL OR expires_at > NOW())
			)
		$$`,
		`CREATE OR REPLACE FUNCTION is_email_domain_blacklisted(p_domain TEXT)
		RETURNS BOOLEAN LANGUAGE sql STABLE AS $$
			SELECT EXISTS (
				SELECT 1 FROM email_domain_blacklist
				WHERE LOWER(domain) = LOWER(p_domain)
				  AND is_active AND (expires_at IS NULL OR expires_at > NOW())
			)
		$$`,

		`CREATE INDEX IF NOT EXISTS idx_properties_public_created_at ON properties(is_public, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_user_blacklist_user_id ON user_blacklist(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_blacklist_email_lower ON user_blacklist(LOWER(email))`,
		`CREATE INDEX IF NOT EXISTS idx_property_blacklist_property_id ON property_blacklist(property_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ip_blacklist_ip_address ON ip_blacklist USING gist (ip_address inet_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_email_domain_blacklist_domain_lower ON email_domain_blacklist(LOWER(domain))`,
		`CREATE INDEX IF NOT EXISTS idx_content_filters_is_active ON content_filters(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_inquiries_created_at ON inquiries(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	log.Info("✅ PostgreSQL tables initialized")
	return nil
}
