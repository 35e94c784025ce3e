package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// MembershipJoinAuthorizer authorizes room joins against project
// membership: a user may join a project room only as a member, and a
// user room only as that user. Unknown room names are denied.
type MembershipJoinAuthorizer struct {
	memberRepo ports.MembershipRepository
}

var _ ports.JoinAuthorizer = (*MembershipJoinAuthorizer)(nil)

// NewMembershipJoinAuthorizer creates a membership-backed authorizer.
func NewMembershipJoinAuthorizer(memberRepo ports.MembershipRepository) *MembershipJoinAuthorizer {
	return &MembershipJoinAuthorizer{memberRepo: memberRepo}
}

// AuthorizeJoin implements ports.JoinAuthorizer.
func (a *MembershipJoinAuthorizer) AuthorizeJoin(ctx context.Context, userID uuid.UUID, room string) (bool, error) {
	kind, id, ok := strings.Cut(room, ":")
	if !ok {
		return false, nil
	}

	targetID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	switch kind {
	case "project":
		return a.memberRepo.IsMember(ctx, userID, targetID)
	case "user":
		return userID == targetID, nil
	default:
		return false, nil
	}
}

// AllowAllJoinAuthorizer honors every join request. Matches the
// pre-authorization behavior; intended for development and tests only.
type AllowAllJoinAuthorizer struct{}

var _ ports.JoinAuthorizer = AllowAllJoinAuthorizer{}

// AuthorizeJoin implements ports.JoinAuthorizer.
func (AllowAllJoinAuthorizer) AuthorizeJoin(context.Context, uuid.UUID, string) (bool, error) {
	return true, nil
}
