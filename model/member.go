package model

import (
	"time"
)

// MemberStatus defines the list of possible member statuses
type MemberStatus string

const (
	// MemberStatusActive when the member is active and counted in the activeMembers rollup
	MemberStatusActive MemberStatus = "active"
	// MemberStatusInactive when the member was deactivated
	MemberStatusInactive MemberStatus = "inactive"
)

func (s MemberStatus) String() string {
	return string(s)
}

// IsValid checks the status against the known list
func (s MemberStatus) IsValid() bool {
	return s == MemberStatusActive || s == MemberStatusInactive
}

// Member structure
//
// A member and its single inbound edge (ParentID) are created together. ParentID is 0 for root
// members and never changes afterwards.
type Member struct {
	ID            uint64       `json:"id"`
	ParentID      uint64       `json:"-"`
	Name          string       `json:"name"`
	Avatar        string       `json:"avatar"`
	ReferralCode  string       `json:"-"`
	Status        MemberStatus `json:"status"`
	AbsoluteLevel int          `json:"absoluteLevel"`
	JoinedAt      time.Time    `json:"joinDate"`
	// Path holds the ancestor ids ordered from the forest root down to the parent
	Path []uint64 `json:"-"`
}

// IsRoot returns true if the member has no parent
func (m *Member) IsRoot() bool {
	return m.ParentID == 0
}

// IsActive godoc
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// HasAncestor checks if the given id is on the member's ancestor chain
func (m *Member) HasAncestor(id uint64) bool {
	for _, ancestorID := range m.Path {
		if ancestorID == id {
			return true
		}
	}
	return false
}

// Chain returns the ancestor chain ordered from the parent up to the forest root
func (m *Member) Chain() []uint64 {
	chain := make([]uint64, len(m.Path))
	for i, id := range m.Path {
		chain[len(m.Path)-1-i] = id
	}
	return chain
}

// RollupSnapshot holds the derived counters of a node
type RollupSnapshot struct {
	DirectRefs    int64 `json:"directRefs"`
	NetworkSize   int64 `json:"networkSize"`
	ActiveMembers int64 `json:"activeMembers"`
	Earnings      int64 `json:"earnings"`
}

// NetworkMember is a member together with its rollup counters
type NetworkMember struct {
	Member
	RollupSnapshot
}

// Edge structure
type Edge struct {
	ParentID uint64 `json:"parentId"`
	ChildID  uint64 `json:"childId"`
}

// RegistrationRequest godoc
type RegistrationRequest struct {
	ID           uint64       `json:"id"`
	Name         string       `json:"name" binding:"required,max=255"`
	Avatar       string       `json:"avatar" binding:"max=1024"`
	Status       MemberStatus `json:"status"`
	ReferralCode string       `json:"referralCode"`
	JoinedAt     *time.Time   `json:"joinedAt"`
}

// RegistrationResponse godoc
type RegistrationResponse struct {
	Member       *NetworkMember `json:"member"`
	ParentID     uint64         `json:"parentId,omitempty"`
	ReferralCode string         `json:"referralCode"`
}

// StatusChangeRequest godoc
type StatusChangeRequest struct {
	Status MemberStatus `json:"status" binding:"required"`
}
