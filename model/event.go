package model

import (
	"strconv"
	"time"

	"github.com/segmentio/encoding/json"
)

// NetworkEventType godoc
type NetworkEventType string

const (
	NetworkEventType_MemberRegistered    NetworkEventType = "member_registered"
	NetworkEventType_MemberStatusChanged NetworkEventType = "member_status_changed"
)

// NetworkEvent is published after a write on the referral network was committed
type NetworkEvent struct {
	Type       NetworkEventType `json:"type"`
	MemberID   uint64           `json:"member_id"`
	ParentID   uint64           `json:"parent_id,omitempty"`
	Status     MemberStatus     `json:"status"`
	Upline     []uint64         `json:"upline"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewNetworkEvent godoc
func NewNetworkEvent(eventType NetworkEventType, member *Member) *NetworkEvent {
	return &NetworkEvent{
		Type:       eventType,
		MemberID:   member.ID,
		ParentID:   member.ParentID,
		Status:     member.Status,
		Upline:     member.Chain(),
		OccurredAt: time.Now().UTC(),
	}
}

// Key used to partition the events by member
func (event *NetworkEvent) Key() []byte {
	return []byte(strconv.FormatUint(event.MemberID, 10))
}

// ToBinary converts an event to a byte string
func (event *NetworkEvent) ToBinary() ([]byte, error) {
	return json.Marshal(event)
}

// FromBinary loads an event from a byte array
func (event *NetworkEvent) FromBinary(msg []byte) error {
	return json.Unmarshal(msg, event)
}
