package guard

import (
	"context"
	"log/slog"

	"github.com/guardianbot/guardian/platform"
)

// revertNick issues the corrective rename and absorbs platform failures so
// they never take down the dispatch loop. The suppression marker is only set
// once the platform accepted the rename; a failed revert leaves no marker.
func (eng *Engine) revertNick(ctx context.Context, logger *slog.Logger, guildID, memberID, targetName string) error {
	err := eng.setNickOnce(ctx, guildID, memberID, targetName)
	if err != nil && !isPermanent(err) {
		// one more try for transient failures, then give up
		logger.Warn("revert attempt failed, retrying once", "err", err)
		err = eng.setNickOnce(ctx, guildID, memberID, targetName)
	}

	switch {
	case err == nil:
		revertsIssued.Inc()
		if eng.Markers != nil {
			eng.Markers.Set(guildID, memberID, targetName)
		}
		logger.Info("reverted nickname", "nick", targetName)
		return nil
	case platform.IsMemberGone(err):
		// member left between the event and our action; nothing to revert
		logger.Info("member gone before revert, skipping")
		return nil
	case platform.IsPermissionDenied(err):
		revertsFailed.WithLabelValues("permission").Inc()
		logger.Error("missing permission to revert nickname", "err", err)
		return nil
	case platform.IsThrottled(err):
		// the HTTP client already burned its bounded backoff budget; drop
		// the correction rather than queueing indefinitely
		revertsFailed.WithLabelValues("ratelimit").Inc()
		logger.Error("rate limited, dropping revert", "err", err)
		return nil
	default:
		revertsFailed.WithLabelValues("transient").Inc()
		logger.Error("failed to revert nickname", "err", err)
		return nil
	}
}

func (eng *Engine) setNickOnce(ctx context.Context, guildID, memberID, nick string) error {
	ctx, cancel := context.WithTimeout(ctx, eng.callTimeout())
	defer cancel()
	return eng.Platform.SetMemberNick(ctx, guildID, memberID, nick)
}

// isPermanent reports whether a platform error can't be helped by retrying.
func isPermanent(err error) bool {
	return platform.IsMemberGone(err) || platform.IsPermissionDenied(err) || platform.IsThrottled(err)
}
