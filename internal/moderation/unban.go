package moderation

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	errs "github.com/iamwavecut/modbot/internal/errors"
	"github.com/iamwavecut/modbot/internal/observability"
	"github.com/iamwavecut/modbot/internal/registry"
)

type (
	UnbanClient interface {
		AdminChecker
		RestoreMember(ctx context.Context, chatID int64, userID int64) error
		EditNotice(ctx context.Context, chatID int64, messageID int, text string) error
		AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error
	}

	// UnbanRequest comes from a press on a ban notice's unban button.
	UnbanRequest struct {
		CallbackID    string
		ChatID        int64
		NoticeID      int
		RequesterID   int64
		RequesterName string
		TargetID      int64
	}

	UnbanWorkflow struct {
		store   *registry.Store
		machine *StateMachine
		chat    UnbanClient
		notices Notices
		logger  *log.Entry
	}
)

func NewUnbanWorkflow(store *registry.Store, machine *StateMachine, chat UnbanClient, notices Notices) *UnbanWorkflow {
	return &UnbanWorkflow{
		store:   store,
		machine: machine,
		chat:    chat,
		notices: notices,
		logger:  log.WithField("object", "UnbanWorkflow"),
	}
}

// Unban lifts the ban of the request's target. The requester's admin status
// is checked against the platform on every call. ErrNotAuthorized and
// ErrNotBanned are answered to the requester and returned without any state
// change.
func (w *UnbanWorkflow) Unban(ctx context.Context, req UnbanRequest) error {
	ctx, span := observability.Tracer().Start(ctx, "moderation.unban")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chat_id", req.ChatID),
		attribute.Int64("target_id", req.TargetID),
	)

	entry := w.logger.WithFields(log.Fields{
		"chat_id":      req.ChatID,
		"requester_id": req.RequesterID,
		"target_id":    req.TargetID,
	})

	isAdmin, err := w.chat.IsAdmin(ctx, req.ChatID, req.RequesterID)
	if err != nil {
		entry.WithField("error", err.Error()).Warn("cant check admin status, treating as member")
		isAdmin = false
	}

	uid := registry.UserIDOf(req.TargetID)
	var targetName string
	err = w.store.Update(ctx, func(r *registry.Registry) error {
		if err := w.machine.OnUnban(r, uid, isAdmin); err != nil {
			return err
		}
		if stats, ok := r.UserStats[uid]; ok && stats != nil {
			targetName = stats.Name
		}
		return nil
	})
	switch {
	case errors.Is(err, errs.ErrNotAuthorized):
		w.answer(ctx, entry, req.CallbackID, w.notices.NotAuthorized(), true)
		return err
	case errors.Is(err, errs.ErrNotBanned):
		w.answer(ctx, entry, req.CallbackID, w.notices.NotBanned(), true)
		return err
	case err != nil:
		return err
	}

	observability.RecordConsequence("unban")
	entry.Info("user unbanned")

	if err := w.chat.RestoreMember(ctx, req.ChatID, req.TargetID); err != nil {
		entry.WithField("error", err.Error()).Error("cant restore permissions")
	}
	if req.NoticeID != 0 {
		if err := w.chat.EditNotice(ctx, req.ChatID, req.NoticeID, w.notices.Unbanned(req.TargetID, targetName, req.RequesterName)); err != nil {
			entry.WithField("error", err.Error()).Warn("cant edit ban notice")
		}
	}
	w.answer(ctx, entry, req.CallbackID, w.notices.UnbanDone(), false)
	return nil
}

func (w *UnbanWorkflow) answer(ctx context.Context, entry *log.Entry, callbackID string, text string, alert bool) {
	if callbackID == "" {
		return
	}
	if err := w.chat.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		entry.WithField("error", err.Error()).Debug("cant answer callback")
	}
}
