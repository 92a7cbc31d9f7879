package server

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	limit "github.com/bu/gin-access-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/actions"
	"gitlab.com/paramountdax-exchange/genealogy_api/logger"
	"gitlab.com/paramountdax-exchange/genealogy_api/monitor"
)

func (srv *server) ListenToRequests() {
	log.Info().Str("worker", "http_listen_to_requests").Str("action", "start").Msg("HTTP Listen to requests - started")
	defer log.Info().Str("worker", "http_listen_to_requests").Str("action", "stop").Msg("HTTP Listen to requests - stopped")

	srv.HTTP = &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.config.Server.API.Port),
		Handler: srv.router(),
	}
	srv.HTTP.SetKeepAlivesEnabled(srv.config.Server.API.KeepAlive)

	port := srv.config.Server.API.Port
	if err := srv.HTTP.ListenAndServe(); err != nil {
		if err != http.ErrServerClosed {
			log.Error().Err(err).Str("section", "server").Str("action", "ListenToRequests").Msgf("Unable to listen %d port", port)
		}
	}
}

func (srv *server) router() *gin.Engine {
	a := srv.actions

	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "X-Requested-With", "Content-Length", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "PUT", "POST", "OPTIONS"}

	r.Use(cors.New(corsConfig)) // Allow requests from anywhere
	r.Use(gin.Recovery())       // Recovery middleware recovers from any panics and writes a 500 if there was one.
	r.Use(logger.SetLogger())
	r.Use(monitor.RequestDuration())

	r.GET("/ping", actions.Ping)

	// read api used by the genealogy views
	network := r.Group("/network", a.Restrict(), a.HasPerm("network.view"), a.FeatureEnabled("api.network_tree"))
	{
		network.GET("/overview", a.GetNetworkOverview)
		network.GET("/direct", a.GetDirectReferrals)
		network.GET("/team/:level", a.GetTeamMembersByLevel)
		network.GET("/path/:nodeId", a.GetAncestorPath)

		tree := network.Group("/tree", a.RateLimit())
		tree.GET("", a.GetNetworkTree)
		tree.GET("/:nodeId", a.GetNetworkTreeFromNode)
	}

	limit.TrustedHeaderField = "X-Forwarded-For"

	// write api used by the registration and account services
	internal := r.Group("/internal/network")
	{
		internal.Use(limit.CIDR(srv.config.Server.Internal.AllowedIPs))
		internal.Use(a.Restrict(), a.HasPerm("network.write"))

		internal.POST("/members", a.RegisterMember)
		internal.PUT("/members/:id/status", a.ChangeMemberStatus)
		internal.POST("/earnings/recompute", a.RecomputeEarnings)
	}

	debug := r.Group("/debug")
	{
		debug.Use(limit.CIDR(srv.config.Server.Debug.AllowedIPs))

		debug.GET("/pprof/:name", func(context *gin.Context) {
			pprof.Handler(context.Param("name")).ServeHTTP(context.Writer, context.Request)
		})
	}

	return r
}
