package actions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	authCache "gitlab.com/paramountdax-exchange/genealogy_api/cache/auth"
	"gitlab.com/paramountdax-exchange/genealogy_api/logger"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/service"
)

// permission that allows a role to read any member's network
const permViewAny = "network.view.any"

// Ping godoc
func Ping(c *gin.Context) {
	c.JSON(OK, "pong")
}

func abortWithError(c *gin.Context, code int, message string) {
	abortWithErrorCode(c, code, message, "")
}

func abortWithErrorCode(c *gin.Context, code int, message, errorCode string) {
	l := getlog(c)
	l.Debug().Int("resp_code", code).Str("error_code", errorCode).Msg(message)
	c.AbortWithStatusJSON(code, model.RequestError{Error: message, Code: errorCode})
}

func getUserID(c *gin.Context) (uint64, bool) {
	iUserID, ok := c.Get("auth_user_id")
	if !ok {
		return 0, false
	}
	return iUserID.(uint64), true
}

func getRoleAlias(c *gin.Context) string {
	role, _ := c.Get("auth_role_alias")
	alias, _ := role.(string)
	return alias
}

// getViewer builds the viewer of a read request from the authenticated caller
func getViewer(c *gin.Context) service.Viewer {
	userID, _ := getUserID(c)
	return service.Viewer{
		MemberID:   userID,
		Privileged: authCache.HasPerm(getRoleAlias(c), permViewAny),
	}
}

func getlog(c *gin.Context) zerolog.Logger {
	return logger.GetLogger(c)
}

// getQueryAsInt returns the default when the parameter is missing and an error when it is not a number
func getQueryAsInt(c *gin.Context, name string, def int) (int, error) {
	val := c.Query(name)
	if val == "" {
		return def, nil
	}
	param, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.Wrapf(model.ErrInvalidParams, "%s must be a number", name)
	}
	return param, nil
}

func getPagination(c *gin.Context, defaultLimit int) (int, int, error) {
	page, err := getQueryAsInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := getQueryAsInt(c, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func getIDParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Wrapf(model.ErrInvalidParams, "invalid %s", name)
	}
	return id, nil
}

// getRootID reads the optional root query parameter, 0 means the caller itself
func getRootID(c *gin.Context) (uint64, error) {
	val := c.Query("root")
	if val == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Wrap(model.ErrInvalidParams, "invalid root")
	}
	return id, nil
}
