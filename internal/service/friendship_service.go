package service

import (
	"context"
	"errors"
	"strings"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/repository"

	"go.uber.org/zap"
)

// ResendPolicy decides whether an earlier request for the same ordered pair
// blocks a new one.
type ResendPolicy int

const (
	// ResendBlockedByAnyRequest blocks once any request exists for the pair,
	// whatever its status.
	ResendBlockedByAnyRequest ResendPolicy = iota
	// ResendAfterRejection blocks only while a request for the pair is pending.
	ResendAfterRejection
)

// DefaultResendPolicy keeps the historical behavior.
const DefaultResendPolicy = ResendBlockedByAnyRequest

func ParseResendPolicy(s string) ResendPolicy {
	if strings.EqualFold(s, "after_reject") {
		return ResendAfterRejection
	}
	return DefaultResendPolicy
}

// blocks reports whether previous requests for the pair forbid sending again.
func (p ResendPolicy) blocks(previous []*model.FriendRequest) bool {
	switch p {
	case ResendAfterRejection:
		for _, r := range previous {
			if r.Status == model.FriendRequestPending {
				return true
			}
		}
		return false
	default:
		return len(previous) > 0
	}
}

// Notifier is told about social graph transitions. Its failures never fail the
// transition itself.
type Notifier interface {
	FriendRequestReceived(ctx context.Context, req *model.FriendRequest, sender *model.PublicProfile) error
	FriendRequestAccepted(ctx context.Context, req *model.FriendRequest, accepter *model.PublicProfile) error
}

type FriendshipService interface {
	SendRequest(ctx context.Context, fromUserID, toUserID string) (*model.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, fromUserID, callerID string) (*model.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID, callerID string) (*model.FriendRequest, error)
	RemoveFriend(ctx context.Context, callerID, friendID string) error
	ListIncomingRequests(ctx context.Context, callerID string) ([]*model.FriendRequestWithProfile, error)
	ListFriends(ctx context.Context, callerID string) ([]*model.FriendWithProfile, error)
}

type friendshipService struct {
	friendships    repository.FriendshipRepository
	friendRequests repository.FriendRequestRepository
	profiles       repository.ProfileRepository
	tx             repository.Transactor
	notifier       Notifier
	policy         ResendPolicy
	logger         *zap.Logger
}

func NewFriendshipService(
	friendships repository.FriendshipRepository,
	friendRequests repository.FriendRequestRepository,
	profiles repository.ProfileRepository,
	tx repository.Transactor,
	notifier Notifier,
	policy ResendPolicy,
	logger *zap.Logger,
) FriendshipService {
	return &friendshipService{
		friendships:    friendships,
		friendRequests: friendRequests,
		profiles:       profiles,
		tx:             tx,
		notifier:       notifier,
		policy:         policy,
		logger:         logger,
	}
}

// SendRequest creates a pending request from fromUserID to toUserID.
func (s *friendshipService) SendRequest(ctx context.Context, fromUserID, toUserID string) (*model.FriendRequest, error) {
	if toUserID == "" {
		return nil, apperror.Validation("recipient is required")
	}
	if fromUserID == toUserID {
		return nil, apperror.Validation("you cannot send a friend request to yourself")
	}

	if _, err := s.profiles.FindPublicByID(ctx, toUserID); err != nil {
		return nil, lookupErr(err, "user not found", "send friend request")
	}

	friends, err := s.friendships.Exists(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, storeErr(err, "send friend request")
	}
	if friends {
		return nil, apperror.New(apperror.KindAlreadyFriends, "you are already friends")
	}

	previous, err := s.friendRequests.FindByPair(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, storeErr(err, "send friend request")
	}
	if s.policy.blocks(previous) {
		return nil, apperror.New(apperror.KindDuplicateRequest, "friend request already sent")
	}

	req := &model.FriendRequest{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     model.FriendRequestPending,
	}
	if err := s.friendRequests.Create(ctx, req); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperror.New(apperror.KindDuplicateRequest, "friend request already sent")
		}
		return nil, storeErr(err, "send friend request")
	}

	s.logger.Info("friend request sent",
		zap.String("request_id", req.ID),
		zap.String("from_user_id", fromUserID),
		zap.String("to_user_id", toUserID),
	)

	s.notify(ctx, func(sender *model.PublicProfile) error {
		return s.notifier.FriendRequestReceived(ctx, req, sender)
	}, fromUserID)

	return req, nil
}

// AcceptRequest creates both friendship edges and marks the request accepted as
// one unit of work. Only the recipient may accept.
func (s *friendshipService) AcceptRequest(ctx context.Context, requestID, fromUserID, callerID string) (*model.FriendRequest, error) {
	req, err := s.resolvable(ctx, requestID, callerID, "accept friend request")
	if err != nil {
		return nil, err
	}
	if fromUserID != "" && req.FromUserID != fromUserID {
		return nil, apperror.Validation("request was not sent by that user")
	}

	err = s.tx.WithinTransaction(ctx, func(repos repository.TxRepositories) error {
		if err := repos.Friendships.CreatePair(ctx, callerID, req.FromUserID); err != nil {
			return err
		}
		return repos.FriendRequests.UpdateStatus(ctx, req.ID, model.FriendRequestAccepted)
	})
	if err != nil {
		s.logger.Warn("accept friend request failed", zap.String("request_id", req.ID), zap.Error(err))
		return nil, storeErr(err, "accept friend request")
	}

	req.Status = model.FriendRequestAccepted
	s.logger.Info("friend request accepted",
		zap.String("request_id", req.ID),
		zap.String("from_user_id", req.FromUserID),
		zap.String("to_user_id", callerID),
	)

	s.notify(ctx, func(accepter *model.PublicProfile) error {
		return s.notifier.FriendRequestAccepted(ctx, req, accepter)
	}, callerID)

	return req, nil
}

// RejectRequest marks a pending request rejected. No edges are created.
func (s *friendshipService) RejectRequest(ctx context.Context, requestID, callerID string) (*model.FriendRequest, error) {
	req, err := s.resolvable(ctx, requestID, callerID, "reject friend request")
	if err != nil {
		return nil, err
	}

	if err := s.friendRequests.UpdateStatus(ctx, req.ID, model.FriendRequestRejected); err != nil {
		return nil, storeErr(err, "reject friend request")
	}

	req.Status = model.FriendRequestRejected
	s.logger.Info("friend request rejected", zap.String("request_id", req.ID), zap.String("to_user_id", callerID))
	return req, nil
}

// RemoveFriend deletes both edges between the caller and friendID. Removing a
// friendship that does not exist succeeds.
func (s *friendshipService) RemoveFriend(ctx context.Context, callerID, friendID string) error {
	if friendID == "" || friendID == callerID {
		return apperror.Validation("invalid friend")
	}

	if err := s.friendships.DeletePair(ctx, callerID, friendID); err != nil {
		return storeErr(err, "remove friend")
	}

	s.logger.Info("friend removed", zap.String("user_id", callerID), zap.String("friend_id", friendID))
	return nil
}

// ListIncomingRequests returns the caller's pending requests with each sender's
// public profile.
func (s *friendshipService) ListIncomingRequests(ctx context.Context, callerID string) ([]*model.FriendRequestWithProfile, error) {
	reqs, err := s.friendRequests.ListPendingIncoming(ctx, callerID)
	if err != nil {
		return nil, storeErr(err, "list friend requests")
	}

	senderIDs := make([]string, 0, len(reqs))
	for _, r := range reqs {
		senderIDs = append(senderIDs, r.FromUserID)
	}

	byID, err := s.publicProfiles(ctx, senderIDs)
	if err != nil {
		return nil, storeErr(err, "list friend requests")
	}

	out := make([]*model.FriendRequestWithProfile, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, &model.FriendRequestWithProfile{
			FriendRequest: *r,
			FromProfile:   byID[r.FromUserID],
		})
	}
	return out, nil
}

// ListFriends returns the caller's friends. Edges whose profile cannot be
// resolved are dropped.
func (s *friendshipService) ListFriends(ctx context.Context, callerID string) ([]*model.FriendWithProfile, error) {
	edges, err := s.friendships.ListByUser(ctx, callerID)
	if err != nil {
		return nil, storeErr(err, "list friends")
	}

	friendIDs := make([]string, 0, len(edges))
	for _, e := range edges {
		friendIDs = append(friendIDs, e.FriendID)
	}

	byID, err := s.publicProfiles(ctx, friendIDs)
	if err != nil {
		return nil, storeErr(err, "list friends")
	}

	out := make([]*model.FriendWithProfile, 0, len(edges))
	for _, e := range edges {
		profile, ok := byID[e.FriendID]
		if !ok {
			s.logger.Warn("dropping friend without profile", zap.String("user_id", callerID), zap.String("friend_id", e.FriendID))
			continue
		}
		out = append(out, &model.FriendWithProfile{
			ID:       e.ID,
			FriendID: e.FriendID,
			Profile:  profile,
		})
	}
	return out, nil
}

// resolvable loads a request the caller may accept or reject.
func (s *friendshipService) resolvable(ctx context.Context, requestID, callerID, op string) (*model.FriendRequest, error) {
	req, err := s.friendRequests.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "friend request not found", op)
	}
	if req.ToUserID != callerID {
		return nil, apperror.Forbidden("only the recipient can respond to this request")
	}
	if req.Status.Terminal() {
		return nil, apperror.New(apperror.KindInvalidState, "friend request has already been resolved")
	}
	return req, nil
}

func (s *friendshipService) publicProfiles(ctx context.Context, ids []string) (map[string]*model.PublicProfile, error) {
	byID := make(map[string]*model.PublicProfile, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	profiles, err := s.profiles.FindPublicByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *friendshipService) notify(ctx context.Context, send func(actor *model.PublicProfile) error, actorID string) {
	if s.notifier == nil {
		return
	}

	actor, err := s.profiles.FindPublicByID(ctx, actorID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("notification skipped", zap.String("actor_id", actorID), zap.Error(err))
		}
		return
	}

	if err := send(actor); err != nil {
		s.logger.Warn("notification failed", zap.String("actor_id", actorID), zap.Error(err))
	}
}
