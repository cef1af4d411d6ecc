package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"moodmap/internal/logutil"
	"moodmap/internal/mood"
	"moodmap/internal/persist"
	"moodmap/internal/render"
	"moodmap/internal/room"
	"moodmap/internal/viewmodel"
	"moodmap/pkg/realtime"
	"moodmap/views/components"
	"moodmap/views/pages"
)

const (
	popularLimit  = 5
	maxMoodBody   = 16 << 10
	qrSize        = 256
	keepAliveTime = 25 * time.Second
)

type RoomHandler struct {
	rooms        *room.Service
	renderer     *render.Renderer
	interactions *interactionStore
	baseURL      string
	keepAlive    time.Duration
}

func NewRoomHandler(rooms *room.Service, renderer *render.Renderer, baseURL string) *RoomHandler {
	return &RoomHandler{
		rooms:        rooms,
		renderer:     renderer,
		interactions: newInteractionStore(),
		baseURL:      baseURL,
		keepAlive:    keepAliveTime,
	}
}

// RegisterRoutes adds every request/response route of a room.
func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Get("/r/{slug}", h.roomPage)
	r.Post("/r/{slug}/unlock", h.unlock)
	r.Get("/r/{slug}/map", h.mapFragment)
	r.Post("/r/{slug}/pointer", h.pointer)
	r.Post("/r/{slug}/confirm", h.confirm)
	r.Post("/r/{slug}/cancel", h.cancel)
	r.Post("/r/{slug}/emotion", h.emotion)
	r.Get("/r/{slug}/popular", h.popularFragment)
	r.Get("/r/{slug}/moods", h.listMoods)
	r.Post("/r/{slug}/moods", h.postMood)
	r.Get("/r/{slug}/map.png", h.mapPNG)
	r.Get("/r/{slug}/qr.png", h.qrPNG)
}

// RegisterStreamRoutes adds the long-lived event stream. It is kept apart so
// request timeouts can skip it.
func (h *RoomHandler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/r/{slug}/stream", h.stream)
}

type visit struct {
	room   *room.Room
	member room.Member
}

// access resolves the room in the URL and checks the passcode cookie.
func (h *RoomHandler) access(r *http.Request) (*room.Room, error) {
	rm, err := h.rooms.ResolveRoom(chi.URLParam(r, "slug"))
	if err != nil {
		return nil, err
	}
	if rm.Locked() && !rm.CheckAccess(accessTokenFromCookie(r, rm.ID)) {
		return rm, room.ErrAccessDenied
	}
	return rm, nil
}

// enter grants access and makes the browser a member of the room.
func (h *RoomHandler) enter(w http.ResponseWriter, r *http.Request) (visit, error) {
	rm, err := h.access(r)
	if err != nil {
		return visit{room: rm}, err
	}
	member, err := h.rooms.EnsureMember(r.Context(), rm, anonID(w, r))
	if err != nil {
		return visit{room: rm}, err
	}
	return visit{room: rm, member: member}, nil
}

func (h *RoomHandler) roomPage(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if errors.Is(err, room.ErrAccessDenied) && v.room != nil {
		writeHTML(w, r, pages.UnlockPage(viewmodel.UnlockPage{
			Title:     "Mood Map",
			Slug:      v.room.Slug,
			RoomTitle: v.room.Title,
		}))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := h.interactions.Get(v.room.ID, v.member.ID)
	writeHTML(w, r, pages.RoomPage(viewmodel.RoomPage{
		Title:     v.room.Title + " | Mood Map",
		Slug:      v.room.Slug,
		RoomTitle: v.room.Title,
		ShareURL:  shareURL(r, h.baseURL, v.room.Slug),
		QRURL:     "/r/" + v.room.Slug + "/qr.png",
		Members:   v.room.MemberCount(),
		Map:       h.buildMap(v, in),
		Popular:   h.buildPopular(v.room),
		Emotions:  h.emotionOptions(),
	}))
}

func (h *RoomHandler) unlock(w http.ResponseWriter, r *http.Request) {
	rm, err := h.rooms.ResolveRoom(chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	token, err := h.rooms.Unlock(rm, r.FormValue("passcode"))
	if err != nil {
		status, _ := statusFor(err)
		writeHTMLStatus(w, r, status, pages.UnlockPage(viewmodel.UnlockPage{
			Title:     "Mood Map",
			Slug:      rm.Slug,
			RoomTitle: rm.Title,
			Error:     publicMessage(err),
		}))
		return
	}
	setAccessCookie(w, rm.ID, token)
	http.Redirect(w, r, "/r/"+rm.Slug, http.StatusSeeOther)
}

func (h *RoomHandler) mapFragment(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeHTML(w, r, components.MapBoard(h.buildMap(v, h.interactions.Get(v.room.ID, v.member.ID))))
}

func (h *RoomHandler) pointer(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	kind := r.FormValue("kind")
	var x, y float64
	if kind != "leave" {
		var errX, errY error
		x, errX = strconv.ParseFloat(r.FormValue("x"), 64)
		y, errY = strconv.ParseFloat(r.FormValue("y"), 64)
		if errX != nil || errY != nil || !finite(x) || !finite(y) {
			http.Error(w, "x and y must be numbers", http.StatusBadRequest)
			return
		}
	}

	in := h.interactions.Get(v.room.ID, v.member.ID)
	dots := v.room.Dots(h.rooms.Catalog())
	switch kind {
	case "move":
		in = h.renderer.PointerMove(in, dots, x, y)
	case "leave":
		in = h.renderer.PointerLeave(in)
	case "down":
		var sel mood.Selection
		var ok bool
		in, sel, ok = h.renderer.PointerDown(in, dots, x, y)
		if ok {
			if _, err := h.rooms.SubmitMood(r.Context(), v.room, v.member.ID, sel); err != nil {
				writeError(w, r, err)
				return
			}
		}
	default:
		http.Error(w, "kind must be move, down or leave", http.StatusBadRequest)
		return
	}
	h.interactions.Set(v.room.ID, v.member.ID, in)
	writeHTML(w, r, components.MapBoard(h.buildMap(v, in)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (h *RoomHandler) confirm(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in, sel, ok := h.renderer.Confirm(h.interactions.Get(v.room.ID, v.member.ID), r.FormValue("label"))
	if ok {
		if _, err := h.rooms.SubmitMood(r.Context(), v.room, v.member.ID, sel); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.interactions.Set(v.room.ID, v.member.ID, in)
	h.respondMap(w, r, v, in)
}

func (h *RoomHandler) cancel(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := h.renderer.Cancel(h.interactions.Get(v.room.ID, v.member.ID))
	h.interactions.Set(v.room.ID, v.member.ID, in)
	h.respondMap(w, r, v, in)
}

func (h *RoomHandler) emotion(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := h.rooms.PostEmotion(r.Context(), v.room, v.member.ID, r.FormValue("key")); err != nil {
		writeError(w, r, err)
		return
	}
	in := h.renderer.Cancel(h.interactions.Get(v.room.ID, v.member.ID))
	h.interactions.Set(v.room.ID, v.member.ID, in)
	h.respondMap(w, r, v, in)
}

// respondMap answers the browser script with the board and plain form posts
// with a redirect back to the room.
func (h *RoomHandler) respondMap(w http.ResponseWriter, r *http.Request, v visit, in render.Interaction) {
	if isFragmentRequest(r) {
		writeHTML(w, r, components.MapBoard(h.buildMap(v, in)))
		return
	}
	http.Redirect(w, r, "/r/"+v.room.Slug, http.StatusSeeOther)
}

func (h *RoomHandler) popularFragment(w http.ResponseWriter, r *http.Request) {
	rm, err := h.access(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeHTML(w, r, components.PopularSidebar(h.buildPopular(rm)))
}

type moodResponse struct {
	persist.Record
	Color string `json:"color"`
}

func (h *RoomHandler) listMoods(w http.ResponseWriter, r *http.Request) {
	rm, err := h.access(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	moods := rm.Moods()
	out := make([]moodResponse, 0, len(moods))
	for _, m := range moods {
		out = append(out, moodResponse{
			Record: persist.FromMood(m),
			Color:  mood.Hex(h.rooms.Catalog().ColorFor(m.EmotionKey)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// postMood accepts a mood as JSON. A body carrying updated_at is treated as a
// delayed delivery and only applied when it is newer than the held mood.
func (h *RoomHandler) postMood(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var rec persist.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMoodBody)).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body", Code: "bad_request"})
		return
	}
	m := rec.Mood()
	m.ID = ""
	m.MemberID = v.member.ID
	m.Label = render.NormalizeNote(m.Label)

	if !m.UpdatedAt.IsZero() && !m.UpdatedAt.After(time.Now()) {
		applied, err := h.rooms.ApplyRemote(r.Context(), v.room, m)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !applied {
			cur, _ := v.room.CurrentMood(v.member.ID)
			writeJSON(w, http.StatusOK, map[string]any{"applied": false, "current": persist.FromMood(cur)})
			return
		}
		cur, _ := v.room.CurrentMood(v.member.ID)
		writeJSON(w, http.StatusCreated, map[string]any{"applied": true, "current": persist.FromMood(cur)})
		return
	}

	stored, err := h.rooms.SubmitMood(r.Context(), v.room, v.member.ID, mood.Selection{
		EmotionKey: m.EmotionKey,
		Valence:    m.Valence,
		Arousal:    m.Arousal,
		Label:      m.Label,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"applied": true, "current": persist.FromMood(stored)})
}

func (h *RoomHandler) stream(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hub := h.rooms.Broadcaster(v.room.ID)
	if hub == nil {
		writeError(w, r, room.ErrRoomNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	send := func(event string) {
		switch event {
		case realtime.EventMap:
			in := h.interactions.Get(v.room.ID, v.member.ID)
			writeSSE(w, realtime.EventMap, renderToString(r, components.MapBoard(h.buildMap(v, in))))
		case realtime.EventPopular:
			writeSSE(w, realtime.EventPopular, renderToString(r, components.PopularSidebar(h.buildPopular(v.room))))
		default:
			return
		}
		flusher.Flush()
	}

	send(realtime.EventMap)
	send(realtime.EventPopular)

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			send(event)
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *RoomHandler) mapPNG(w http.ResponseWriter, r *http.Request) {
	v, err := h.enter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	frame := h.renderer.Render(render.Scene{
		Dots:        v.room.Dots(h.rooms.Catalog()),
		ViewerID:    v.member.ID,
		Interaction: render.Idle(),
	})
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, frame); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", v.room.Slug+".png"))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *RoomHandler) qrPNG(w http.ResponseWriter, r *http.Request) {
	rm, err := h.access(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(shareURL(r, h.baseURL, rm.Slug), qrcode.Medium, qrSize)
	if err != nil {
		logutil.Errorf("qr for %s: %v", rm.ID, err)
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *RoomHandler) buildMap(v visit, in render.Interaction) viewmodel.MapFragment {
	frame := h.renderer.Render(render.Scene{
		Dots:        v.room.Dots(h.rooms.Catalog()),
		ViewerID:    v.member.ID,
		Interaction: in,
	})
	frag := viewmodel.MapFragment{Slug: v.room.Slug, Frame: frame}
	if p := frame.Pending; p != nil {
		label := p.EmotionKey
		if a, ok := h.rooms.Catalog().Lookup(p.EmotionKey); ok {
			label = a.Label
		}
		frag.Editor = &viewmodel.Editor{X: p.X, Y: p.Y, EmotionLabel: label, MaxLen: render.MaxNoteLen}
	}
	return frag
}

func (h *RoomHandler) buildPopular(rm *room.Room) viewmodel.PopularFragment {
	popular := rm.Popular(popularLimit)
	maxN := 1
	for _, p := range popular {
		if p.Count > maxN {
			maxN = p.Count
		}
	}
	rows := make([]viewmodel.PopularRow, 0, len(popular))
	for _, p := range popular {
		label := p.EmotionKey
		if a, ok := h.rooms.Catalog().Lookup(p.EmotionKey); ok {
			label = a.Label
		}
		pct := (p.Count*100 + maxN/2) / maxN
		if pct < 4 {
			pct = 4
		}
		rows = append(rows, viewmodel.PopularRow{
			Key:     p.EmotionKey,
			Label:   label,
			Count:   p.Count,
			Percent: pct,
			Bar:     h.barColor(p.EmotionKey),
		})
	}
	return viewmodel.PopularFragment{Slug: rm.Slug, Rows: rows}
}

// barColor is the emotion's tile gradient, translucent.
func (h *RoomHandler) barColor(key string) string {
	t, ok := h.renderer.Grid().TileByKey(key)
	if !ok {
		return "rgba(59, 130, 246, 0.28)"
	}
	c := h.renderer.Grid().TileColor(t)
	return fmt.Sprintf("rgba(%d, %d, %d, 0.32)", c.R, c.G, c.B)
}

func (h *RoomHandler) emotionOptions() []viewmodel.EmotionOption {
	anchors := h.rooms.Catalog().Anchors()
	out := make([]viewmodel.EmotionOption, 0, len(anchors))
	for _, a := range anchors {
		c := a.Color
		if t, ok := h.renderer.Grid().TileByKey(a.Key); ok {
			c = h.renderer.Grid().TileColor(t)
		}
		out = append(out, viewmodel.EmotionOption{Key: a.Key, Label: a.Label, Color: mood.Hex(c)})
	}
	return out
}
