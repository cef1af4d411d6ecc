package handlers

import (
	"errors"
	"net/http"

	"moodmap/internal/logutil"
	"moodmap/internal/room"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{room.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	// a locked room answers like a missing one
	{room.ErrAccessDenied, http.StatusNotFound, "room_not_found"},
	{room.ErrUnknownEmotion, http.StatusUnprocessableEntity, "unknown_emotion"},
	{room.ErrNotMember, http.StatusForbidden, "not_member"},
	{room.ErrInvalidTitle, http.StatusBadRequest, "invalid_title"},
}

func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// publicMessage hides which of "missing" and "locked" applies.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrAccessDenied):
		return "Room not found or access denied"
	case errors.Is(err, room.ErrUnknownEmotion):
		return "Unknown emotion"
	case errors.Is(err, room.ErrInvalidTitle):
		return "Please enter a room name (up to 80 characters)"
	case errors.Is(err, room.ErrNotMember):
		return "Join the room first"
	default:
		return "Something went wrong"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		logutil.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	if wantsJSON(r) {
		writeJSON(w, status, errorResponse{Error: publicMessage(err), Code: code})
		return
	}
	http.Error(w, publicMessage(err), status)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Content-Type") == "application/json"
}
