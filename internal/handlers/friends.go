package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
	"github.com/HammerMeetNail/skillswap/internal/services"
)

// FriendHandler serves the friend list and friend request reads. Sending and
// resolving requests happens over the websocket gateway.
type FriendHandler struct {
	users          services.UserServiceInterface
	friendRequests services.FriendRequestServiceInterface
}

func NewFriendHandler(users services.UserServiceInterface, friendRequests services.FriendRequestServiceInterface) *FriendHandler {
	return &FriendHandler{
		users:          users,
		friendRequests: friendRequests,
	}
}

type FriendListResponse struct {
	Friends []models.Friend `json:"friends"`
}

type FriendRequestListResponse struct {
	Requests []models.FriendRequestView `json:"requests"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friends, err := h.users.ListFriends(r.Context(), user.ID)
	if err != nil {
		logging.Error("Error listing friends", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if friends == nil {
		friends = []models.Friend{}
	}

	writeJSON(w, http.StatusOK, FriendListResponse{Friends: friends})
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	requests, err := h.friendRequests.ListPending(r.Context(), user.ID)
	if err != nil {
		logging.Error("Error listing friend requests", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestListResponse{Requests: requests})
}

func (h *FriendHandler) ListSentRequests(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	requests, err := h.friendRequests.ListSent(r.Context(), user.ID)
	if err != nil {
		logging.Error("Error listing sent friend requests", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestListResponse{Requests: requests})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	requestID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	err = h.friendRequests.Cancel(r.Context(), user.ID, requestID)
	if errors.Is(err, services.ErrFriendRequestNotFound) {
		writeError(w, http.StatusNotFound, "Friend request not found")
		return
	}
	if errors.Is(err, services.ErrAlreadyProcessed) {
		writeError(w, http.StatusConflict, "Request already processed")
		return
	}
	if err != nil {
		logging.Error("Error cancelling friend request", logging.Fields{"request_id": requestID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request cancelled"})
}
