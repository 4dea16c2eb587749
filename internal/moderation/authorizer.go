package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/bookmarket/core/logger"
	"github.com/m3rciful/bookmarket/internal/messaging"
)

// ErrNotAuthorized is returned when an actor may not moderate.
var ErrNotAuthorized = errors.New("moderation: not authorized")

// RoleLookup queries chat membership.
type RoleLookup interface {
	MemberRole(ctx context.Context, chatID, userID int64) (messaging.Role, error)
}

// Authorizer admits allow-listed users and owners/administrators of the
// moderation chat. Roles are looked up on every call and lookup failures deny.
type Authorizer struct {
	chatID int64
	allow  map[int64]struct{}
	roles  RoleLookup
}

func NewAuthorizer(moderationChatID int64, admins []int64, roles RoleLookup) *Authorizer {
	allow := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		allow[id] = struct{}{}
	}
	return &Authorizer{chatID: moderationChatID, allow: allow, roles: roles}
}

// Authorize returns nil when userID may moderate, otherwise an error wrapping ErrNotAuthorized.
func (a *Authorizer) Authorize(ctx context.Context, userID int64) error {
	if _, ok := a.allow[userID]; ok {
		return nil
	}
	if a.roles == nil {
		return ErrNotAuthorized
	}
	role, err := a.roles.MemberRole(ctx, a.chatID, userID)
	if err != nil {
		logger.Warn(ctx, logger.CompModeration, "auth.role_lookup",
			slog.String("status", "fail"),
			slog.Int64("actor_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("%w: role lookup: %w", ErrNotAuthorized, err)
	}
	if !role.Privileged() {
		return fmt.Errorf("%w: role %s", ErrNotAuthorized, role)
	}
	return nil
}

// Allowed adapts Authorize to the access middleware signature.
func (a *Authorizer) Allowed(ctx context.Context, userID int64) (bool, error) {
	if err := a.Authorize(ctx, userID); err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
