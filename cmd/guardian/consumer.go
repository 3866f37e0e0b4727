package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/guardianbot/guardian/gateway"
	"github.com/guardianbot/guardian/gateway/schedulers/parallel"
	"github.com/guardianbot/guardian/guard"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
)

func (s *Server) RunConsumer(ctx context.Context) error {

	cur, err := s.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.DefaultDialer
	u, err := url.Parse(s.gatewayHost)
	if err != nil {
		return fmt.Errorf("invalid gateway host URI: %w", err)
	}
	u.Path = "/gateway/subscribe"
	if cur != 0 {
		u.RawQuery = fmt.Sprintf("cursor=%d", cur)
	}
	s.logger.Info("subscribing to member event stream", "upstream", s.gatewayHost, "cursor", cur)
	con, _, err := dialer.Dial(u.String(), http.Header{
		"User-Agent":    []string{fmt.Sprintf("guardian/%s", versioninfo.Short())},
		"Authorization": []string{"Bot " + s.gatewayToken},
	})
	if err != nil {
		return fmt.Errorf("subscribing to gateway failed (dialing): %w", err)
	}

	cbs := &gateway.StreamCallbacks{
		MemberUpdate: func(evt *gateway.MemberUpdate) error {
			atomic.StoreInt64(&s.lastSeq, evt.Seq)
			memberUpdatesReceived.Inc()
			if err := s.engine.ProcessMemberUpdate(ctx, evt); err != nil {
				s.logger.Error("processing member update failed", "guild", evt.GuildID, "member", evt.MemberID, "seq", evt.Seq, "err", err)
			}
			return nil
		},
		Message: func(evt *gateway.MessageCreate) error {
			atomic.StoreInt64(&s.lastSeq, evt.Seq)
			cmd, ok := guard.ParseCommand(s.commandPrefix, evt)
			if !ok {
				return nil
			}
			commandsReceived.Inc()
			reply := s.engine.ProcessCommand(ctx, cmd)
			if reply == "" {
				return nil
			}
			if err := s.engine.Platform.SendMessage(ctx, evt.ChannelID, reply); err != nil {
				s.logger.Error("sending command reply failed", "guild", evt.GuildID, "channel", evt.ChannelID, "seq", evt.Seq, "err", err)
			}
			return nil
		},
		Error: func(evt *gateway.ErrorFrame) error {
			s.logger.Warn("received error frame from gateway", "name", evt.ErrStr, "message", evt.Message)
			return nil
		},
	}

	workers := s.workers
	if workers <= 0 {
		workers = 16
	}
	return gateway.HandleStream(
		ctx, con, parallel.NewScheduler(
			workers,
			s.gatewayHost,
			cbs.EventHandler,
		),
	)
}
