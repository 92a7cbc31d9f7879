package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"gitlab.com/paramountdax-exchange/genealogy_api/cache/overview"
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// Store is the referral graph together with its rollup counters.
// Writes update the edge and the ancestor rollups in one atomic step.
type Store interface {
	Insert(ctx context.Context, member *model.Member, parentID uint64) (*model.NetworkMember, error)
	SetStatus(ctx context.Context, id uint64, status model.MemberStatus) (*model.NetworkMember, bool, error)
	GetMember(ctx context.Context, id uint64) (*model.NetworkMember, error)
	FindByReferralCode(ctx context.Context, code string) (*model.NetworkMember, error)
	GetParent(ctx context.Context, id uint64) (uint64, error)
	GetChildren(ctx context.Context, id uint64, page, limit int) ([]*model.NetworkMember, int64, error)
	GetChildrenOf(ctx context.Context, parentIDs []uint64) (map[uint64][]*model.NetworkMember, error)
	GetAncestorPath(ctx context.Context, id uint64) ([]*model.NetworkMember, error)
	CountByLevel(ctx context.Context, rootID uint64, maxLevel int) (map[int]int64, error)
	GetMembersByLevel(ctx context.Context, rootID uint64, level, page, limit int) ([]*model.NetworkMember, int64, error)
	ApplyEarnings(ctx context.Context, own map[uint64]int64) (int, error)
}

// Ledger is the external commission ledger, read only
type Ledger interface {
	CommissionTotals(ctx context.Context) (map[uint64]int64, error)
}

// EventPublisher publishes the committed network changes
type EventPublisher interface {
	Publish(ctx context.Context, events ...*model.NetworkEvent) error
}

// Service structure
type Service struct {
	cfg       config.NetworkConfig
	store     Store
	ledger    Ledger
	overviews overview.Cache
	events    EventPublisher

	loads       singleflight.Group
	generations overviewGenerations
}

// NewService constructor
func NewService(
	cfg config.NetworkConfig,
	store Store,
	ledger Ledger,
	overviews overview.Cache,
	events EventPublisher,
) *Service {
	if overviews == nil {
		overviews = overview.Nop{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	if ledger == nil {
		ledger = emptyLedger{}
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		ledger:    ledger,
		overviews: overviews,
		events:    events,
	}
}

// GetConfig godoc
func (service *Service) GetConfig() config.NetworkConfig {
	return service.cfg
}

func (service *Service) publish(ctx context.Context, event *model.NetworkEvent) {
	if err := service.events.Publish(ctx, event); err != nil {
		log.Error().Err(err).
			Str("section", "service").
			Str("action", "publish").
			Str("event", string(event.Type)).
			Uint64("member_id", event.MemberID).
			Msg("Unable to publish network event")
	}
}

const (
	defaultOverviewLoadTimeout = 10 * time.Second
	generationStripes          = 256
)

// overviewGenerations counts the invalidations per member, striped by id
type overviewGenerations [generationStripes]uint64

func (g *overviewGenerations) current(memberID uint64) uint64 {
	return atomic.LoadUint64(&g[memberID%generationStripes])
}

func (g *overviewGenerations) bump(memberIDs ...uint64) {
	for _, id := range memberIDs {
		atomic.AddUint64(&g[id%generationStripes], 1)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...*model.NetworkEvent) error { return nil }

type emptyLedger struct{}

func (emptyLedger) CommissionTotals(context.Context) (map[uint64]int64, error) {
	return map[uint64]int64{}, nil
}
