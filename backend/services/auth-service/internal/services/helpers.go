package services

import (
	"context"
	"strings"
	"time"

	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

const notifyTimeout = 30 * time.Second

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notifyAsync hands a message to the dispatcher without blocking the
// caller. The request context is detached so the send outlives the request.
func notifyAsync(ctx context.Context, d NotificationDispatcher, recipient, subject, body string) {
	if d == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := d.Dispatch(ctx, recipient, subject, body); err != nil {
			utils.Logger.WithError(err).WithField("subject", subject).Warn("notification dispatch failed")
		}
	}()
}
