package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"moodmap/internal/room"
	"moodmap/internal/viewmodel"
	"moodmap/views/pages"
)

type HomeHandler struct {
	rooms *room.Service
}

func NewHomeHandler(rooms *room.Service) *HomeHandler {
	return &HomeHandler{rooms: rooms}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/new", h.newRoom)
	r.Post("/rooms", h.createRoom)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/new", http.StatusSeeOther)
}

func (h *HomeHandler) newRoom(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, r, pages.NewRoomPage(viewmodel.NewRoomPage{Title: "New Mood Map"}))
}

func (h *HomeHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	title := r.FormValue("title")
	passcode := r.FormValue("passcode")
	anon := anonID(w, r)

	created, err := h.rooms.CreateRoom(r.Context(), title, passcode, anon)
	if errors.Is(err, room.ErrInvalidTitle) {
		writeHTMLStatus(w, r, http.StatusBadRequest, pages.NewRoomPage(viewmodel.NewRoomPage{
			Title:     "New Mood Map",
			RoomTitle: title,
			Passcode:  passcode,
			Error:     publicMessage(err),
		}))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	// the creator never has to type their own passcode
	if created.Locked() {
		setAccessCookie(w, created.ID, created.AccessToken())
	}
	http.Redirect(w, r, "/r/"+created.Slug, http.StatusSeeOther)
}
