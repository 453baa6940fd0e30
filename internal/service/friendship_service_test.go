package service

import (
	"context"
	"errors"
	"testing"

	"classmate/internal/apperror"
	"classmate/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFriendshipFixture(policy ResendPolicy) (*memStore, *recordingNotifier, FriendshipService) {
	m := newMemStore()
	m.addProfile("alice", "alice", "AAAAAAAA")
	m.addProfile("bob", "bob", "BBBBBBBB")
	m.addProfile("carol", "carol", "CCCCCCCC")

	notifier := &recordingNotifier{}
	svc := NewFriendshipService(memFriendships{m}, memRequests{m}, memProfiles{m}, m, notifier, policy, zap.NewNop())
	return m, notifier, svc
}

func TestSendRequest(t *testing.T) {
	ctx := context.Background()
	m, notifier, svc := newFriendshipFixture(DefaultResendPolicy)

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestPending, req.Status)
	assert.Equal(t, 1, m.pendingCount("alice", "bob"))
	assert.Equal(t, []string{"bob"}, notifier.received)
}

func TestSendRequestPreconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(m *memStore)
		from  string
		to    string
		want  apperror.Kind
	}{
		{name: "self", from: "alice", to: "alice", want: apperror.KindValidation},
		{name: "missing recipient id", from: "alice", to: "", want: apperror.KindValidation},
		{name: "unknown recipient", from: "alice", to: "nobody", want: apperror.KindNotFound},
		{name: "already friends", setup: func(m *memStore) { m.befriend("alice", "bob") }, from: "alice", to: "bob", want: apperror.KindAlreadyFriends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, svc := newFriendshipFixture(DefaultResendPolicy)
			if tt.setup != nil {
				tt.setup(m)
			}
			_, err := svc.SendRequest(ctx, tt.from, tt.to)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperror.KindOf(err))
			assert.Equal(t, 0, m.pendingCount(tt.from, tt.to))
		})
	}
}

func TestSendRequestTwiceIsDuplicate(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.Equal(t, apperror.KindDuplicateRequest, apperror.KindOf(err))
	assert.Equal(t, 1, m.pendingCount("alice", "bob"))
}

func TestReverseDirectionIsADifferentPair(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newFriendshipFixture(DefaultResendPolicy)

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, "bob", "alice")
	assert.NoError(t, err)
}

func TestResendPolicyAfterRejection(t *testing.T) {
	ctx := context.Background()

	t.Run("default blocks after rejection", func(t *testing.T) {
		_, _, svc := newFriendshipFixture(ResendBlockedByAnyRequest)
		req, err := svc.SendRequest(ctx, "alice", "bob")
		require.NoError(t, err)
		_, err = svc.RejectRequest(ctx, req.ID, "bob")
		require.NoError(t, err)

		_, err = svc.SendRequest(ctx, "alice", "bob")
		assert.Equal(t, apperror.KindDuplicateRequest, apperror.KindOf(err))
	})

	t.Run("after_reject allows a new request", func(t *testing.T) {
		m, _, svc := newFriendshipFixture(ResendAfterRejection)
		req, err := svc.SendRequest(ctx, "alice", "bob")
		require.NoError(t, err)

		_, err = svc.SendRequest(ctx, "alice", "bob")
		assert.Equal(t, apperror.KindDuplicateRequest, apperror.KindOf(err), "still blocked while pending")

		_, err = svc.RejectRequest(ctx, req.ID, "bob")
		require.NoError(t, err)

		_, err = svc.SendRequest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, m.pendingCount("alice", "bob"))
	})
}

func TestParseResendPolicy(t *testing.T) {
	assert.Equal(t, ResendAfterRejection, ParseResendPolicy("after_reject"))
	assert.Equal(t, ResendBlockedByAnyRequest, ParseResendPolicy("block_any"))
	assert.Equal(t, ResendBlockedByAnyRequest, ParseResendPolicy(""))
}

func TestAcceptRequestCreatesSymmetricEdges(t *testing.T) {
	ctx := context.Background()
	m, notifier, svc := newFriendshipFixture(DefaultResendPolicy)

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	accepted, err := svc.AcceptRequest(ctx, req.ID, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestAccepted, accepted.Status)
	assert.True(t, m.hasEdge("alice", "bob"))
	assert.True(t, m.hasEdge("bob", "alice"))
	assert.Equal(t, []string{"alice"}, notifier.accepted)
}

func TestAcceptRequestIsAtomic(t *testing.T) {
	ctx := context.Background()

	for _, op := range []string{"friendships.create_pair", "requests.update_status"} {
		t.Run(op, func(t *testing.T) {
			m, notifier, svc := newFriendshipFixture(DefaultResendPolicy)
			req, err := svc.SendRequest(ctx, "alice", "bob")
			require.NoError(t, err)

			m.fail(op)
			_, err = svc.AcceptRequest(ctx, req.ID, "alice", "bob")
			require.Error(t, err)
			assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
			assert.True(t, errors.Is(err, errInjected))
			assert.Equal(t, "failed to accept friend request", apperror.MessageOf(err))

			assert.False(t, m.hasEdge("alice", "bob"))
			assert.False(t, m.hasEdge("bob", "alice"))
			assert.Equal(t, 1, m.pendingCount("alice", "bob"))
			assert.Empty(t, notifier.accepted)

			delete(m.failOn, op)
			_, err = svc.AcceptRequest(ctx, req.ID, "alice", "bob")
			require.NoError(t, err)
			assert.True(t, m.hasEdge("alice", "bob"))
			assert.True(t, m.hasEdge("bob", "alice"))
			assert.Equal(t, 0, m.pendingCount("alice", "bob"))
		})
	}
}

func TestAcceptRequestGuards(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.AcceptRequest(ctx, req.ID, "alice", "carol")
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err), "only the recipient may accept")

	_, err = svc.AcceptRequest(ctx, req.ID, "carol", "bob")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), "sender must match")

	_, err = svc.AcceptRequest(ctx, "missing", "alice", "bob")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = svc.AcceptRequest(ctx, req.ID, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.AcceptRequest(ctx, req.ID, "alice", "bob")
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	_, err = svc.RejectRequest(ctx, req.ID, "bob")
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	assert.True(t, m.hasEdge("alice", "bob"))
}

func TestRejectRequest(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.RejectRequest(ctx, req.ID, "alice")
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	rejected, err := svc.RejectRequest(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestRejected, rejected.Status)
	assert.False(t, m.hasEdge("alice", "bob"))
	assert.False(t, m.hasEdge("bob", "alice"))
}

func TestRemoveFriendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)
	m.befriend("alice", "bob")

	require.NoError(t, svc.RemoveFriend(ctx, "alice", "bob"))
	require.NoError(t, svc.RemoveFriend(ctx, "alice", "bob"))
	assert.False(t, m.hasEdge("alice", "bob"))
	assert.False(t, m.hasEdge("bob", "alice"))

	err := svc.RemoveFriend(ctx, "alice", "alice")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestRemoveFriendStoreFailure(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)
	m.befriend("alice", "bob")
	m.fail("friendships.delete_pair")

	err := svc.RemoveFriend(ctx, "alice", "bob")
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
	assert.True(t, m.hasEdge("alice", "bob"))
}

func TestListIncomingRequests(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newFriendshipFixture(DefaultResendPolicy)

	_, err := svc.SendRequest(ctx, "alice", "carol")
	require.NoError(t, err)
	fromBob, err := svc.SendRequest(ctx, "bob", "carol")
	require.NoError(t, err)
	_, err = svc.RejectRequest(ctx, fromBob.ID, "carol")
	require.NoError(t, err)

	reqs, err := svc.ListIncomingRequests(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "alice", reqs[0].FromUserID)
	require.NotNil(t, reqs[0].FromProfile)
	assert.Equal(t, "AAAAAAAA", reqs[0].FromProfile.FriendCode)
}

func TestListFriendsDropsJoinMisses(t *testing.T) {
	ctx := context.Background()
	m, _, svc := newFriendshipFixture(DefaultResendPolicy)
	m.befriend("alice", "bob")
	m.befriend("alice", "ghost")

	friends, err := svc.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].FriendID)
	assert.Equal(t, "bob", *friends[0].Profile.Username)
}

func TestNotifierFailureDoesNotFailSend(t *testing.T) {
	ctx := context.Background()
	m, notifier, svc := newFriendshipFixture(DefaultResendPolicy)
	notifier.err = errors.New("push down")

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, m.pendingCount("alice", "bob"))
}
