package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guardianbot/guardian/guard/rolestore"
	"github.com/guardianbot/guardian/guard/suppress"
)

// RecordingPlatform is a PlatformClient fake that records every call.
// Intentionally exported, for use in other packages' tests.
type RecordingPlatform struct {
	lk sync.Mutex
	// errors to return from successive SetMemberNick calls; nil entries
	// mean success, an exhausted queue means success
	NickErrs []error

	Nicks    []NickChange
	Messages []SentMessage
}

type NickChange struct {
	GuildID  string
	MemberID string
	Nick     string
}

type SentMessage struct {
	ChannelID string
	Content   string
}

func (p *RecordingPlatform) SetMemberNick(ctx context.Context, guildID, memberID, nick string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Nicks = append(p.Nicks, NickChange{GuildID: guildID, MemberID: memberID, Nick: nick})
	if len(p.NickErrs) > 0 {
		err := p.NickErrs[0]
		p.NickErrs = p.NickErrs[1:]
		return err
	}
	return nil
}

func (p *RecordingPlatform) SendMessage(ctx context.Context, channelID, content string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Messages = append(p.Messages, SentMessage{ChannelID: channelID, Content: content})
	return nil
}

// EngineTestFixture returns an engine wired to in-memory stores and a
// RecordingPlatform, pre-configured with one immune role.
func EngineTestFixture() (*Engine, *RecordingPlatform) {
	roles := rolestore.NewMemRoleStore()
	_ = roles.AddImmuneRole(context.Background(), "guild1", "role-immune", "Mods")

	p := &RecordingPlatform{}
	eng := &Engine{
		Logger:   slog.Default(),
		Roles:    roles,
		Platform: p,
		Markers:  suppress.NewMarkerStore(1000, time.Minute),
	}
	return eng, p
}
