// Package gateway consumes the chat platform's real-time event stream. Raw
// frames are decoded and classified exactly once, at ingestion; everything
// downstream works with typed events and never re-inspects payload shape.
package gateway

import (
	"encoding/json"
	"fmt"
)

const (
	FrameKindMessage = 1
	FrameKindError   = -1
)

// Frame is the wire envelope for every gateway message.
type Frame struct {
	Op   int             `json:"op"`
	Seq  int64           `json:"seq,omitempty"`
	Type string          `json:"t,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

const (
	TypeMemberUpdate  = "MEMBER_UPDATE"
	TypeMessageCreate = "MESSAGE_CREATE"
)

// MemberUpdateKind says what actually changed in a member-update event.
type MemberUpdateKind int

const (
	MemberUpdateOther MemberUpdateKind = iota
	MemberUpdateNameChanged
	MemberUpdateRoleChanged
)

func (k MemberUpdateKind) String() string {
	switch k {
	case MemberUpdateNameChanged:
		return "name"
	case MemberUpdateRoleChanged:
		return "roles"
	default:
		return "other"
	}
}

// MemberUpdate is a notification that some mutable attribute of a guild
// member changed. Kind is assigned during decode and is the only field
// consumers should branch on.
type MemberUpdate struct {
	Seq      int64    `json:"-"`
	GuildID  string   `json:"guild_id"`
	MemberID string   `json:"member_id"`
	OldNick  string   `json:"old_nick"`
	NewNick  string   `json:"new_nick"`
	RoleIDs  []string `json:"roles"`
	// OldRoleIDs is only present when the update was triggered by a role
	// change; used for classification, not enforcement.
	OldRoleIDs []string `json:"old_roles,omitempty"`

	Kind MemberUpdateKind `json:"-"`
}

// MessageCreate is a plain-text message posted in a guild channel. The
// daemon only cares about these as potential administrative commands.
type MessageCreate struct {
	Seq       int64    `json:"-"`
	GuildID   string   `json:"guild_id"`
	ChannelID string   `json:"channel_id"`
	AuthorID  string   `json:"author_id"`
	Content   string   `json:"content"`
	// Role set of the author, for command authorization.
	AuthorRoleIDs []string `json:"author_roles"`
}

// ErrorFrame is an error condition reported by the gateway itself.
type ErrorFrame struct {
	ErrStr  string `json:"error"`
	Message string `json:"message"`
}

// StreamEvent is the sum type handed to schedulers and callbacks: exactly one
// of the fields is non-nil.
type StreamEvent struct {
	MemberUpdate *MemberUpdate
	Message      *MessageCreate
	Error        *ErrorFrame
}

func classifyMemberUpdate(evt *MemberUpdate) MemberUpdateKind {
	if evt.OldNick != evt.NewNick {
		return MemberUpdateNameChanged
	}
	if evt.OldRoleIDs != nil && !sameStringSet(evt.OldRoleIDs, evt.RoleIDs) {
		return MemberUpdateRoleChanged
	}
	return MemberUpdateOther
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]bool, len(a))
	for _, v := range a {
		m[v] = true
	}
	for _, v := range b {
		if !m[v] {
			return false
		}
	}
	return true
}

// DecodeFrame turns a raw wire frame into a typed StreamEvent.
func DecodeFrame(f *Frame) (*StreamEvent, error) {
	switch f.Op {
	case FrameKindMessage:
		switch f.Type {
		case TypeMemberUpdate:
			var evt MemberUpdate
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return nil, fmt.Errorf("decoding member update event: %w", err)
			}
			evt.Seq = f.Seq
			evt.Kind = classifyMemberUpdate(&evt)
			return &StreamEvent{MemberUpdate: &evt}, nil
		case TypeMessageCreate:
			var evt MessageCreate
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return nil, fmt.Errorf("decoding message event: %w", err)
			}
			evt.Seq = f.Seq
			return &StreamEvent{Message: &evt}, nil
		default:
			// gateway may add event types; ignore the ones we don't consume
			return nil, nil
		}
	case FrameKindError:
		var ef ErrorFrame
		if err := json.Unmarshal(f.Data, &ef); err != nil {
			return nil, fmt.Errorf("decoding error frame: %w", err)
		}
		return &StreamEvent{Error: &ef}, nil
	default:
		return nil, fmt.Errorf("unrecognized event stream op: %d", f.Op)
	}
}
