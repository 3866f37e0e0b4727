package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// StreamCallbacks bundles the per-event-type handlers for a gateway
// subscription. Nil callbacks mean that event type is ignored.
type StreamCallbacks struct {
	MemberUpdate func(evt *MemberUpdate) error
	Message      func(evt *MessageCreate) error
	Error        func(evt *ErrorFrame) error
}

func (cbs *StreamCallbacks) EventHandler(ctx context.Context, evt *StreamEvent) error {
	switch {
	case evt.MemberUpdate != nil && cbs.MemberUpdate != nil:
		return cbs.MemberUpdate(evt.MemberUpdate)
	case evt.Message != nil && cbs.Message != nil:
		return cbs.Message(evt.Message)
	case evt.Error != nil && cbs.Error != nil:
		return cbs.Error(evt.Error)
	default:
		return nil
	}
}

// WorkKey is the scheduler partition key for an event. Member updates are
// keyed by (guild, member) so one member's updates stay ordered, which the
// revert-suppression logic relies on. Messages are keyed by channel.
func (evt *StreamEvent) WorkKey() string {
	switch {
	case evt.MemberUpdate != nil:
		return evt.MemberUpdate.GuildID + "/" + evt.MemberUpdate.MemberID
	case evt.Message != nil:
		return evt.Message.GuildID + "/" + evt.Message.ChannelID
	default:
		return ""
	}
}

// HandleStream reads frames off an established gateway connection until the
// context is canceled or the connection fails, handing decoded events to the
// scheduler. Blocks; run it in its own goroutine or as the main loop.
func HandleStream(ctx context.Context, con *websocket.Conn, sched Scheduler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := slog.Default().With("subsystem", "gateway-stream")
	remoteAddr := con.RemoteAddr().String()

	go func() {
		t := time.NewTicker(time.Second * 30)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				if err := con.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second*10)); err != nil {
					log.Warn("failed to ping", "err", err)
				}
			case <-ctx.Done():
				con.Close()
				return
			}
		}
	}()

	lastSeq := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mt, raw, err := con.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			return fmt.Errorf("expected data message from gateway endpoint")
		}
		bytesFromStreamCounter.WithLabelValues(remoteAddr).Add(float64(len(raw)))

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		eventsFromStreamCounter.WithLabelValues(remoteAddr).Inc()

		evt, err := DecodeFrame(&frame)
		if err != nil {
			return err
		}
		if evt == nil {
			continue
		}

		if frame.Seq != 0 {
			if frame.Seq < lastSeq {
				log.Error("got events out of order from stream", "seq", frame.Seq, "prev", lastSeq)
			}
			lastSeq = frame.Seq
		}

		if err := sched.AddWork(ctx, evt.WorkKey(), evt); err != nil {
			return err
		}
	}
}
