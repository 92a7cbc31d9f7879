package actions

import (
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/service"
)

// Actions structure
type Actions struct {
	cfg            config.Config
	service        *service.Service
	jwtTokenSecret string
	limiter        *callerLimiter
}

// NewActions constructor
func NewActions(cfg config.Config, srv *service.Service) *Actions {
	return &Actions{
		cfg:            cfg,
		service:        srv,
		jwtTokenSecret: cfg.Server.API.JWTTokenSecret,
		limiter:        newCallerLimiter(cfg.Network.RateLimit),
	}
}
