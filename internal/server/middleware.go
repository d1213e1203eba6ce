package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditservice "github.com/smallbiznis/podbudget/internal/audit/service"
	authdomain "github.com/smallbiznis/podbudget/internal/auth/domain"
	obscontext "github.com/smallbiznis/podbudget/internal/observability/context"
	"github.com/smallbiznis/podbudget/internal/observability/logger"
	organizationdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"

	rateLimitReasonOrgRate = "org-rate"
	rateLimitReasonBatch   = "batch-in-progress"
)

// AuthRequired verifies the session token and stores the principal.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		principal, err := s.verifier.Verify(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		ctx := obscontext.WithActor(c.Request.Context(), string(ActorUser), principal.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext resolves the caller's membership in the token organization and
// binds the organization, member and tenant schema to the request context.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ctx := c.Request.Context()

		org, err := s.orgSvc.GetByID(ctx, principal.OrgID.String())
		if err != nil {
			if errors.Is(err, organizationdomain.ErrNotFound) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}

		member, err := s.orgSvc.ResolveMember(ctx, principal.OrgID, principal.UserID)
		if err != nil {
			if errors.Is(err, organizationdomain.ErrNotMember) {
				logger.FromContext(ctx).Info("rejected non member",
					zap.String("org_id", principal.OrgID.String()),
				)
			}
			AbortWithError(c, err)
			return
		}

		ctx = orgcontext.WithOrgID(ctx, int64(principal.OrgID))
		ctx = orgcontext.WithMember(ctx, member)
		ctx = tenant.WithSchema(ctx, org.SchemaName)
		ctx = obscontext.WithOrgID(ctx, principal.OrgID.String())
		ctx = auditservice.WithRequestMeta(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// BudgetWriteRateLimit throttles budget mutations per organization. Batch
// updates additionally hold the organization batch lock until the handler
// returns.
func (s *Server) BudgetWriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrOrgRequired)
			return
		}
		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res := s.writeLimiter.Allow(ctx, orgID.String())
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds() + 0.999)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.denyRateLimit(c, endpoint, orgID.String(), rateLimitReasonOrgRate)
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if c.Request.Method == http.MethodPut && strings.HasSuffix(c.FullPath(), "/batch") {
			release, ok := s.writeLimiter.LockBatch(ctx, orgID.String())
			if !ok {
				c.Header("Retry-After", "1")
				s.denyRateLimit(c, endpoint, orgID.String(), rateLimitReasonBatch)
				return
			}
			defer release()
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, orgID.String(), endpoint)
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, endpoint, orgID, reason string) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("budget write rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, orgID, endpoint, reason)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authdomain.Principal{}, false
	}
	principal, ok := value.(authdomain.Principal)
	if !ok || principal.UserID == 0 || principal.OrgID == 0 {
		return authdomain.Principal{}, false
	}
	return principal, true
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
