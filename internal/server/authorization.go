package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	ctx := c.Request.Context()
	member, ok := orgcontext.MemberFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return ErrOrgRequired
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}

	subject := fmt.Sprintf("%s:%s", ActorUser, member.UserID.String())
	return s.authzSvc.Authorize(ctx, subject, orgID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}
