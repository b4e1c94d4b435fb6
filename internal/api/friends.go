package api

import (
	"encoding/json"
	"net/http"

	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
)

type FriendRequestRequest struct {
	UserId int `json:"user_id"`
}

func toFriendRequest(fr database.FriendRequest) types.FriendRequest {
	return types.FriendRequest{
		Id:         fr.Id,
		SenderId:   fr.SenderId,
		ReceiverId: fr.ReceiverId,
		CreatedAt:  fr.CreatedAt,
	}
}

func (s *GoSocialApp) listFriends(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	friends, err := s.db.ListFriends(r.Context(), userId)
	if err != nil {
		s.storeError(w, "list friends", err)
		return
	}

	out := make([]types.User, 0, len(friends))
	for _, f := range friends {
		out = append(out, toUser(f))
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *GoSocialApp) removeFriend(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	friendId, ok := pathId(r, "user_id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.db.RemoveFriend(r.Context(), userId, friendId); err != nil {
		s.storeError(w, "remove friend", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoSocialApp) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	requests, err := s.db.ListFriendRequests(r.Context(), userId)
	if err != nil {
		s.storeError(w, "list friend requests", err)
		return
	}

	out := make([]types.FriendRequest, 0, len(requests))
	for _, fr := range requests {
		out = append(out, toFriendRequest(fr))
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *GoSocialApp) createFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req FriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.UserId <= 0 || req.UserId == userId {
		s.writeError(w, NewBadRequestError())
		return
	}

	if _, err := s.db.GetAccountById(r.Context(), req.UserId); err != nil {
		s.storeError(w, "get account", err)
		return
	}

	friends, err := s.db.AreFriends(r.Context(), userId, req.UserId)
	if err != nil {
		s.storeError(w, "check friendship", err)
		return
	}
	if friends {
		s.writeError(w, NewConflictError())
		return
	}

	fr, err := s.db.CreateFriendRequest(r.Context(), userId, req.UserId)
	if err != nil {
		s.storeError(w, "create friend request", err)
		return
	}

	s.writeJson(w, http.StatusCreated, toFriendRequest(fr))
}

// acceptFriendRequest makes the sender and the caller friends and returns
// their dm channel.
func (s *GoSocialApp) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	requestId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	ch, err := s.db.AcceptFriendRequest(r.Context(), requestId, userId)
	if err != nil {
		s.storeError(w, "accept friend request", err)
		return
	}

	s.writeJson(w, http.StatusOK, chat.ToChannel(ch, nil))
}

func (s *GoSocialApp) deleteFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	requestId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.db.DeleteFriendRequest(r.Context(), requestId, userId); err != nil {
		s.storeError(w, "delete friend request", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
