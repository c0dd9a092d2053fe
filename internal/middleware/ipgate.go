package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/AnshRaj112/estatehub-backend/pkg/clientip"
	"github.com/charmbracelet/log"
)

// IPChecker is the part of BlacklistService the gate needs.
type IPChecker interface {
	CheckIP(ctx context.Context, ip string) models.CheckResult
}

// BlockBlacklistedIP refuses requests from a blacklisted client IP with 403
// and records a violation. Requests whose IP can't be resolved pass.
func BlockBlacklistedIP(checker IPChecker, violations services.ViolationLog, resolver clientip.Resolver, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolver.ClientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := checker.CheckIP(r.Context(), ip)
			if !result.IsBlacklisted {
				next.ServeHTTP(w, r)
				return
			}

			if violations != nil {
				// Detached so a client disconnect doesn't drop the audit record
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
				err := violations.Record(ctx, models.Violation{
					IPAddress:   ip,
					Type:        models.ViolationTypeBlockedIP,
					Message:     result.Reason,
					Path:        r.URL.Path,
					ActionTaken: "rejected",
				})
				cancel()
				if err != nil {
					logger.Error("failed to record violation", "ip", ip, "err", err)
				}
			}

			logger.Info("request from blacklisted ip refused", "ip", ip, "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"error":   "Requests from your network are not allowed",
				"data":    result,
			})
		})
	}
}
