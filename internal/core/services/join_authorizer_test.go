package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	"github.com/hiveboard/taskboard-backend/internal/core/mocks"
)

func TestMembershipJoinAuthorizer(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()

	t.Run("project room requires membership", func(t *testing.T) {
		memberRepo := mocks.NewMockMembershipRepository()
		authorizer := NewMembershipJoinAuthorizer(memberRepo)

		memberRepo.On("IsMember", mock.Anything, userID, projectID).Return(true, nil)

		allowed, err := authorizer.AuthorizeJoin(context.Background(), userID, domain.ProjectRoom(projectID))
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("project room denied for non-member", func(t *testing.T) {
		memberRepo := mocks.NewMockMembershipRepository()
		authorizer := NewMembershipJoinAuthorizer(memberRepo)

		memberRepo.On("IsMember", mock.Anything, userID, projectID).Return(false, nil)

		allowed, err := authorizer.AuthorizeJoin(context.Background(), userID, domain.ProjectRoom(projectID))
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("own user room allowed", func(t *testing.T) {
		authorizer := NewMembershipJoinAuthorizer(mocks.NewMockMembershipRepository())

		allowed, err := authorizer.AuthorizeJoin(context.Background(), userID, domain.UserRoom(userID))
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("another user's room denied", func(t *testing.T) {
		authorizer := NewMembershipJoinAuthorizer(mocks.NewMockMembershipRepository())

		allowed, err := authorizer.AuthorizeJoin(context.Background(), userID, domain.UserRoom(uuid.New()))
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("malformed rooms denied", func(t *testing.T) {
		authorizer := NewMembershipJoinAuthorizer(mocks.NewMockMembershipRepository())

		for _, room := range []string{"", "project", "project:", "project:not-a-uuid", "board:" + projectID.String()} {
			allowed, err := authorizer.AuthorizeJoin(context.Background(), userID, room)
			require.NoError(t, err, room)
			assert.False(t, allowed, room)
		}
	})
}
