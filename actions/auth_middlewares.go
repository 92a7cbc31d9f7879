package actions

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	authCache "gitlab.com/paramountdax-exchange/genealogy_api/cache/auth"
	"gitlab.com/paramountdax-exchange/genealogy_api/featureflags"
	"gitlab.com/paramountdax-exchange/genealogy_api/logger"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// Restrict middleware allows us to restrict access to an endpoint if the token is invalid
func (actions *Actions) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger(c)
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			log.Warn().Str("section", "restrict").Msg("Missing token")
			abortWithErrorCode(c, Unauthorized, "Unauthorized", model.ErrorCodeUnauthenticated)
			return
		}
		actions.restrictByToken(c, token)
	}
}

func (actions *Actions) restrictByToken(c *gin.Context, token string) {
	log := logger.GetLogger(c)
	claims, err := ParseToken(token, actions.jwtTokenSecret)
	// check that the token is valid
	if err != nil {
		_ = c.Error(err)
		log.Warn().Err(err).Str("section", "restrict:token").Msg("Invalid token received")
		abortWithErrorCode(c, Unauthorized, "Unauthorized", model.ErrorCodeUnauthenticated)
		return
	}
	// load the ID of the member from the token
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || userID == 0 {
		log.Warn().Str("section", "restrict:token").Msg("Unable to load member id from token 'sub' claim")
		abortWithErrorCode(c, Unauthorized, "Unauthorized", model.ErrorCodeUnauthenticated)
		return
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		log.Warn().Str("section", "restrict:token").Uint64("member_id", userID).Msg("Missing role claim")
		abortWithErrorCode(c, Unauthorized, "Unauthorized", model.ErrorCodeUnauthenticated)
		return
	}

	// set member id and role on request context
	c.Set("auth_user_id", userID)
	c.Set("auth_role_alias", role)
	c.Next()
}

// HasPerm middleware
func (actions *Actions) HasPerm(alias string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := getRoleAlias(c)
		if authCache.HasPerm(role, alias) {
			c.Next()
			return
		}
		l := getlog(c)
		l.Debug().Str("section", "has_perm").
			Str("perm_alias", alias).
			Str("role_alias", role).
			Msg("Invalid access to restricted resource")
		abortWithErrorCode(c, AccessDenied, "Access Denied", model.ErrorCodeUnauthorized)
	}
}

// FeatureEnabled middleware rejects the requests while the feature is switched off
func (actions *Actions) FeatureEnabled(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !featureflags.IsEnabled(feature) {
			abortWithErrorCode(c, BadRequest, "service temporary unavailable", model.ErrorCodeServiceUnavailable)
			return
		}
		c.Next()
	}
}
