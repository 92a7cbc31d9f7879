package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/actions"
	authCache "gitlab.com/paramountdax-exchange/genealogy_api/cache/auth"
	"gitlab.com/paramountdax-exchange/genealogy_api/cache/genealogy"
	"gitlab.com/paramountdax-exchange/genealogy_api/cache/overview"
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/crons"
	"gitlab.com/paramountdax-exchange/genealogy_api/featureflags"
	"gitlab.com/paramountdax-exchange/genealogy_api/monitor"
	"gitlab.com/paramountdax-exchange/genealogy_api/net/kafka"
	"gitlab.com/paramountdax-exchange/genealogy_api/net/redis"
	"gitlab.com/paramountdax-exchange/genealogy_api/queries"
	"gitlab.com/paramountdax-exchange/genealogy_api/service"
)

// Server interface
type Server interface {
	Listen()
}

type server struct {
	config    config.Config
	actions   *actions.Actions
	service   *service.Service
	repo      *queries.Repo
	redis     *redis.Client
	publisher *kafka.EventPublisher
	ctx       context.Context
	close     context.CancelFunc
	HTTP      *http.Server
}

// NewServer constructor
func NewServer(cfg config.Config) Server {
	ctx, close := context.WithCancel(context.Background())
	srv := &server{
		config: cfg,
		ctx:    ctx,
		close:  close,
	}

	if err := featureflags.Initialize(cfg.Unleash); err != nil {
		log.Error().Err(err).Str("section", "server").Msg("Unable to init feature flags")
	}
	authCache.LoadRoles(cfg.Roles)

	store, ledger := srv.openStorage()
	srv.service = service.NewService(cfg.Network, store, ledger, srv.overviewCache(), srv.eventPublisher())
	srv.actions = actions.NewActions(cfg, srv.service)
	return srv
}

// NewService builds the network service on the configured storage without the http layer
func NewService(cfg config.Config) (*service.Service, func()) {
	srv := &server{config: cfg}
	store, ledger := srv.openStorage()
	return service.NewService(cfg.Network, store, ledger, nil, nil), func() {
		if srv.repo != nil {
			srv.repo.Close()
		}
	}
}

func (srv *server) openStorage() (service.Store, service.Ledger) {
	switch srv.config.Network.Storage {
	case "memory":
		log.Warn().Str("section", "server").Msg("Using in memory storage, the network is lost on restart")
		return genealogy.New(), genealogy.NewLedger()
	case "postgres":
		srv.repo = queries.NewRepo(srv.config.DatabaseCluster.Writer, srv.config.DatabaseCluster.Reader)
		return srv.repo, srv.repo
	}
	log.Fatal().Str("section", "server").Str("storage", srv.config.Network.Storage).Msg("Unknown storage driver")
	return nil, nil
}

func (srv *server) overviewCache() overview.Cache {
	if srv.config.Redis.Addr == "" {
		return overview.NewLocalCache(srv.config.Redis.OverviewTTL)
	}
	srv.redis = redis.NewClient(srv.config.Redis)
	if err := srv.redis.Connect(); err != nil {
		log.Error().Err(err).Str("section", "server").Msg("Unable to connect to redis, overview cache disabled")
		srv.redis = nil
		return overview.Nop{}
	}
	return overview.NewRedisCache(srv.redis, srv.config.Redis.OverviewTTL)
}

func (srv *server) eventPublisher() service.EventPublisher {
	if len(srv.config.Kafka.Brokers) == 0 {
		log.Warn().Str("section", "server").Msg("Kafka not configured, network events are not published")
		return nil
	}
	producer := kafka.NewKafkaProducer(srv.config.Kafka.Writer, srv.config.Kafka.Brokers, srv.config.Kafka.UseTLS, srv.config.Kafka.Topic)
	srv.publisher = kafka.NewEventPublisher(producer)
	return srv.publisher
}

// Listen for http requests until a termination signal is received
func (srv *server) Listen() {
	crons.Start(srv.ctx, srv.config.Crons, srv.service)

	// start the http server
	go srv.ListenToRequests()
	go monitor.LoopProfilingServer(srv.config.Server.Monitoring)

	srv.stopOnSignal()
}

func (srv *server) stopOnSignal() {
	// listen for termination signals
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc

	log.Info().Str("section", "server").Str("app_event", "terminate").Str("signal", sig.String()).Msg("Shutting down services")
	srv.closeApp(5 * time.Second)
}

func (srv *server) closeApp(timeout time.Duration) {
	// define a timeout in which the graceful shutdown procedure should happen before forcing the shutdown
	timeoutFunc := time.AfterFunc(timeout, func() {
		log.Printf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds())
		os.Exit(0)
	})
	defer timeoutFunc.Stop()

	monitor.ShutdownServer()
	if srv.HTTP != nil {
		if err := srv.HTTP.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Str("section", "server").Str("action", "terminate").Msg("Unable to shutdown HTTP server")
		}
	}

	crons.Close()
	srv.close()

	if srv.publisher != nil {
		if err := srv.publisher.Close(); err != nil {
			log.Error().Err(err).Str("section", "server").Str("action", "terminate").Msg("Unable to close kafka producer")
		}
	}
	if srv.redis != nil {
		if err := srv.redis.Disconnect(); err != nil {
			log.Error().Err(err).Str("section", "server").Str("action", "terminate").Msg("Unable to close redis pool")
		}
	}
	featureflags.Close()
	// make sure database connection is closed on program exit
	if srv.repo != nil {
		srv.repo.Close()
	}

	log.Info().Str("section", "server").Str("app_event", "terminate").Str("state", "complete").Msg("All workers terminated")
}
