package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/monitor"
)

// RegisterMember creates a member under the owner of the referral code.
// A request without referral code creates a root member and requires canCreateRoot.
func (service *Service) RegisterMember(ctx context.Context, req model.RegistrationRequest, canCreateRoot bool) (*model.RegistrationResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.Wrap(model.ErrInvalidParams, "name is required")
	}
	if req.Status == "" {
		req.Status = model.MemberStatusActive
	}
	if !req.Status.IsValid() {
		return nil, errors.Wrapf(model.ErrInvalidParams, "unknown status %q", req.Status)
	}

	parentID := uint64(0)
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		parent, err := service.store.FindByReferralCode(ctx, code)
		if errors.Is(err, model.ErrNotFound) {
			return nil, errors.Wrap(model.ErrInvalidParent, "unknown referral code")
		}
		if err != nil {
			return nil, err
		}
		parentID = parent.ID
	} else if !canCreateRoot {
		return nil, errors.Wrap(model.ErrInvalidParams, "referral code is required")
	}

	member := &model.Member{
		ID:           req.ID,
		Name:         req.Name,
		Avatar:       req.Avatar,
		Status:       req.Status,
		ReferralCode: xid.New().String(),
		JoinedAt:     time.Now().UTC(),
	}
	if req.JoinedAt != nil {
		member.JoinedAt = req.JoinedAt.UTC()
	}

	var created *model.NetworkMember
	err := service.withRetry(ctx, "insert", func() error {
		var err error
		created, err = service.store.Insert(ctx, member, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	monitor.MembersInserted.Inc()

	service.invalidateOverviews(ctx, created.Path...)
	service.publish(ctx, model.NewNetworkEvent(model.NetworkEventType_MemberRegistered, &created.Member))

	log.Debug().
		Str("section", "service").
		Str("action", "register_member").
		Uint64("member_id", created.ID).
		Uint64("parent_id", parentID).
		Int("level", created.AbsoluteLevel).
		Msg("Member registered")

	return &model.RegistrationResponse{
		Member:       created,
		ParentID:     parentID,
		ReferralCode: created.ReferralCode,
	}, nil
}

// ChangeStatus moves a member between active and inactive
func (service *Service) ChangeStatus(ctx context.Context, id uint64, status model.MemberStatus) (*model.NetworkMember, error) {
	if !status.IsValid() {
		return nil, errors.Wrapf(model.ErrInvalidParams, "unknown status %q", status)
	}

	var member *model.NetworkMember
	var changed bool
	err := service.withRetry(ctx, "set_status", func() error {
		var err error
		member, changed, err = service.store.SetStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		service.invalidateOverviews(ctx, member.Path...)
		service.publish(ctx, model.NewNetworkEvent(model.NetworkEventType_MemberStatusChanged, &member.Member))
	}
	return member, nil
}

// withRetry runs a write and retries it while it fails with a write conflict.
// Once the retries are exhausted the write fails with ErrServiceUnavailable.
func (service *Service) withRetry(ctx context.Context, action string, write func() error) error {
	attempts := service.cfg.InsertRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = write()
		if err == nil || !errors.Is(err, model.ErrWriteConflict) {
			return err
		}
		monitor.WriteConflicts.WithLabelValues(action).Inc()
		log.Warn().Err(err).
			Str("section", "service").
			Str("action", action).
			Int("attempt", attempt).
			Msg("Write conflict on the ancestor chain")
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(service.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	monitor.WriteRetriesExhausted.WithLabelValues(action).Inc()
	return errors.Wrap(model.ErrServiceUnavailable, err.Error())
}
