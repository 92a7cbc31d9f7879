package model

import "time"

// NestedNode is one node of a bounded-depth network tree.
//
// Children is only present for nodes above the requested depth. A node cut at the depth boundary
// keeps HasChildren=true and no children key so the caller can drill down from it.
type NestedNode struct {
	ID            uint64        `json:"id"`
	Name          string        `json:"name"`
	Avatar        string        `json:"avatar"`
	AbsoluteLevel int           `json:"absoluteLevel"`
	JoinDate      time.Time     `json:"joinDate"`
	Status        MemberStatus  `json:"status"`
	DirectRefs    int64         `json:"directRefs"`
	NetworkSize   int64         `json:"networkSize"`
	Earnings      int64         `json:"earnings"`
	Children      []*NestedNode `json:"children,omitempty"`
	HasChildren   bool          `json:"hasChildren"`
}

// NewNestedNode builds a tree node without children
func NewNestedNode(m *NetworkMember) *NestedNode {
	return &NestedNode{
		ID:            m.ID,
		Name:          m.Name,
		Avatar:        m.Avatar,
		AbsoluteLevel: m.AbsoluteLevel,
		JoinDate:      m.JoinedAt,
		Status:        m.Status,
		DirectRefs:    m.DirectRefs,
		NetworkSize:   m.NetworkSize,
		Earnings:      m.Earnings,
		HasChildren:   m.DirectRefs > 0,
	}
}

// Count returns the number of nodes in the subtree including the node itself
func (n *NestedNode) Count() int {
	total := 1
	for _, child := range n.Children {
		total += child.Count()
	}
	return total
}

// LevelCount godoc
type LevelCount struct {
	Level         int   `json:"level"`
	ReferralCount int64 `json:"referralCount"`
}

// Overview of a member's network
type Overview struct {
	DirectRefs    int64        `json:"directRefs"`
	NetworkSize   int64        `json:"networkSize"`
	ActiveMembers int64        `json:"activeMembers"`
	Earnings      int64        `json:"earnings"`
	Levels        []LevelCount `json:"levels"`
}

// DirectReferralsResponse godoc
type DirectReferralsResponse struct {
	Referrals  []*NetworkMember `json:"referrals"`
	Pagination Pagination       `json:"pagination"`
}

// TeamMembersResponse godoc
type TeamMembersResponse struct {
	Members    []*NetworkMember `json:"members"`
	Pagination Pagination       `json:"pagination"`
}

// AncestorPathResponse godoc
type AncestorPathResponse struct {
	Path []*NetworkMember `json:"path"`
}
