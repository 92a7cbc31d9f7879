package service

import (
	"context"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// Viewer identifies the caller of a read operation
type Viewer struct {
	MemberID uint64
	// Privileged viewers may read any subtree and skip the activation check
	Privileged bool
}

// authorize resolves the target of a read and checks that the viewer may see its subtree.
//
// A non privileged viewer may only read its own subtree (itself or any of its descendants) and
// only while its own account is active.
func (service *Service) authorize(ctx context.Context, viewer Viewer, targetID uint64) (*model.NetworkMember, error) {
	if targetID == 0 {
		targetID = viewer.MemberID
	}
	target, err := service.store.GetMember(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if viewer.Privileged {
		return target, nil
	}

	caller := target
	if target.ID != viewer.MemberID {
		if !target.HasAncestor(viewer.MemberID) {
			return nil, model.ErrUnauthorized
		}
		if caller, err = service.store.GetMember(ctx, viewer.MemberID); err != nil {
			return nil, err
		}
	}
	if !caller.IsActive() {
		return nil, model.ErrActivationRequired
	}
	return target, nil
}
