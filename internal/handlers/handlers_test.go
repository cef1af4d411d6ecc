package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"moodmap/internal/mood"
	"moodmap/internal/persist"
	"moodmap/internal/render"
	"moodmap/internal/room"
)

type fixture struct {
	srv      *httptest.Server
	rooms    *room.Service
	renderer *render.Renderer
	client   *http.Client
}

func newFixture(t *testing.T, opts render.Options) *fixture {
	t.Helper()
	prevHostname := Hostname
	Hostname = func() (string, error) { return "moodhost.example", nil }
	t.Cleanup(func() { Hostname = prevHostname })

	catalog := mood.DefaultCatalog()
	rooms := room.NewService(catalog, persist.NewMemory(), room.Options{})
	renderer := render.NewRenderer(catalog, opts)

	r := chi.NewRouter()
	NewHomeHandler(rooms).RegisterRoutes(r)
	rh := NewRoomHandler(rooms, renderer, "")
	rh.RegisterRoutes(r)
	rh.RegisterStreamRoutes(r)
	NewHealthHandler(rooms).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	// closing the rooms ends open streams before the server waits on them
	t.Cleanup(rooms.Close)

	return &fixture{srv: srv, rooms: rooms, renderer: renderer, client: newClient(t)}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *fixture) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(f.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (f *fixture) post(t *testing.T, c *http.Client, path string, form url.Values, fragment bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if fragment {
		req.Header.Set("Hx-Request", "true")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (f *fixture) postJSON(t *testing.T, c *http.Client, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	var out map[string]any
	_ = json.Unmarshal([]byte(readBody(t, resp)), &out)
	return resp, out
}

// createRoom creates a room as c and returns its slug.
func (f *fixture) createRoom(t *testing.T, c *http.Client, title, passcode string) string {
	t.Helper()
	resp, _ := f.post(t, c, "/rooms", url.Values{"title": {title}, "passcode": {passcode}}, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("create status %d, want 303", resp.StatusCode)
	}
	return strings.TrimPrefix(resp.Header.Get("Location"), "/r/")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func TestHome_RedirectsToNew(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	resp, _ := f.get(t, f.client, "/")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/new" {
		t.Fatalf("GET / = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, body := f.get(t, f.client, "/new")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Room Name") {
		t.Errorf("GET /new = %d, form missing", resp.StatusCode)
	}
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	if slug := f.createRoom(t, f.client, "Team Check-in", ""); slug != "team-check-in" {
		t.Errorf("slug %q, want team-check-in", slug)
	}
	if slug := f.createRoom(t, f.client, "Team Check-in", ""); !strings.HasPrefix(slug, "team-check-in-") {
		t.Errorf("colliding slug %q, want suffixed", slug)
	}

	resp, body := f.post(t, f.client, "/rooms", url.Values{"title": {"   "}}, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank title status %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, "Please enter a room name") {
		t.Error("blank title should re-render the form with an error")
	}
}

func TestRoomPage(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Retro", "")

	resp, body := f.get(t, f.client, "/r/"+slug)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	for _, want := range []string{
		`<svg`, `class="tile"`, "Most popular moods", "The science?",
		"http://moodhost.example:", "/r/" + slug + "/qr.png", `data-stream="/r/` + slug + `/stream"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, _ = f.get(t, f.client, "/r/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown room status %d, want 404", resp.StatusCode)
	}
}

func TestLockedRoom(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Secret", "sunflower")

	// the creator already holds the access cookie
	if resp, body := f.get(t, f.client, "/r/"+slug); resp.StatusCode != http.StatusOK || !strings.Contains(body, "<svg") {
		t.Fatalf("creator should see the board, got %d", resp.StatusCode)
	}

	guest := newClient(t)
	_, body := f.get(t, guest, "/r/"+slug)
	if !strings.Contains(body, "needs a passcode") {
		t.Fatal("guest should see the passcode form")
	}
	locked, _ := f.get(t, guest, "/r/"+slug+"/moods")
	missing, _ := f.get(t, guest, "/r/no-such-room/moods")
	if locked.StatusCode != http.StatusNotFound || missing.StatusCode != locked.StatusCode {
		t.Errorf("moods of locked room = %d, missing room = %d, want both 404", locked.StatusCode, missing.StatusCode)
	}

	resp, body := f.post(t, guest, "/r/"+slug+"/unlock", url.Values{"passcode": {"tulip"}}, false)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Room not found or access denied") {
		t.Errorf("wrong passcode = %d", resp.StatusCode)
	}

	resp, _ = f.post(t, guest, "/r/"+slug+"/unlock", url.Values{"passcode": {" sunflower "}}, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("unlock = %d, want 303", resp.StatusCode)
	}
	if resp, body := f.get(t, guest, "/r/"+slug); resp.StatusCode != http.StatusOK || !strings.Contains(body, "<svg") {
		t.Errorf("unlocked guest should see the board, got %d", resp.StatusCode)
	}
}

func TestPointerEditConfirm(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Board", "")
	tile, _ := f.renderer.Grid().TileByKey("grateful")

	resp, body := f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{
		"kind": {"down"}, "x": {coord(tile.CX)}, "y": {coord(tile.CY)},
	}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pointer down = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `class="note-editor"`) || !strings.Contains(body, `maxlength="60"`) {
		t.Fatal("editor missing after click")
	}

	_, body = f.post(t, f.client, "/r/"+slug+"/confirm", url.Values{"label": {"  coffee  "}}, true)
	if strings.Contains(body, "note-editor") {
		t.Error("editor still open after confirm")
	}
	if !strings.Contains(body, `class="dot-self"`) {
		t.Error("own dot missing after confirm")
	}

	_, body = f.get(t, f.client, "/r/"+slug+"/moods")
	var moods []map[string]any
	if err := json.Unmarshal([]byte(body), &moods); err != nil {
		t.Fatalf("decode moods: %v", err)
	}
	if len(moods) != 1 || moods[0]["emotion_key"] != "grateful" || moods[0]["feeling_label"] != "coffee" {
		t.Errorf("moods %v", moods)
	}
	if _, ok := moods[0]["label"]; ok {
		t.Error("legacy label field written")
	}
}

func TestPointerCancelAndHover(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Board", "")
	tile, _ := f.renderer.Grid().TileByKey("sad")

	_, body := f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{
		"kind": {"move"}, "x": {coord(tile.CX)}, "y": {coord(tile.CY)},
	}, true)
	if !strings.Contains(body, `class="tile-hover"`) || !strings.Contains(body, "cursor:pointer") {
		t.Error("hovered tile not lifted")
	}

	f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{"kind": {"down"}, "x": {coord(tile.CX)}, "y": {coord(tile.CY)}}, true)
	_, body = f.post(t, f.client, "/r/"+slug+"/cancel", nil, true)
	if strings.Contains(body, "note-editor") {
		t.Error("editor open after cancel")
	}
	if len(f.mustRoom(t, slug).Moods()) != 0 {
		t.Error("cancel should not submit")
	}

	resp, _ := f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{"kind": {"jump"}, "x": {"1"}, "y": {"1"}}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", resp.StatusCode)
	}
	resp, _ = f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{"kind": {"move"}, "x": {"left"}}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad coordinates = %d, want 400", resp.StatusCode)
	}
	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		resp, _ = f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{"kind": {"down"}, "x": {v}, "y": {"10"}}, true)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("x=%s = %d, want 400", v, resp.StatusCode)
		}
	}
}

func TestPointerSubmitsWithoutNotes(t *testing.T) {
	opts := render.DefaultOptions(600)
	opts.EnableNotes = false
	f := newFixture(t, opts)
	slug := f.createRoom(t, f.client, "Quick", "")
	tile, _ := f.renderer.Grid().TileByKey("tired")

	_, body := f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{
		"kind": {"down"}, "x": {coord(tile.CX)}, "y": {coord(tile.CY)},
	}, true)
	if strings.Contains(body, "note-editor") {
		t.Error("editor shown with notes disabled")
	}
	moods := f.mustRoom(t, slug).Moods()
	if len(moods) != 1 || moods[0].EmotionKey != "tired" {
		t.Errorf("moods %+v, want one tired", moods)
	}
}

func TestEmotionPickerAndPopular(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Picker", "")

	resp, _ := f.post(t, f.client, "/r/"+slug+"/emotion", url.Values{"key": {"curious"}}, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("emotion = %d, want 303", resp.StatusCode)
	}
	other := newClient(t)
	f.post(t, other, "/r/"+slug+"/emotion", url.Values{"key": {"curious"}}, false)

	_, body := f.get(t, f.client, "/r/"+slug+"/popular")
	if !strings.Contains(body, `data-key="curious"`) || !strings.Contains(body, "width:100%") {
		t.Errorf("popular fragment: %s", body)
	}

	resp, _ = f.post(t, f.client, "/r/"+slug+"/emotion", url.Values{"key": {"smug"}}, false)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown emotion = %d, want 422", resp.StatusCode)
	}
}

func TestPostMoodJSON(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Api", "")
	path := "/r/" + slug + "/moods"

	resp, out := f.postJSON(t, f.client, path, `{"emotion_key":"bored","valence":-0.4,"arousal":-0.3,"label":"legacy note"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post = %d", resp.StatusCode)
	}
	cur := out["current"].(map[string]any)
	if cur["feeling_label"] != "legacy note" {
		t.Errorf("legacy label not normalized: %v", cur)
	}

	stale := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp, out = f.postJSON(t, f.client, path, `{"emotion_key":"sad","valence":-1,"arousal":0,"updated_at":"`+stale+`"}`)
	if resp.StatusCode != http.StatusOK || out["applied"] != false {
		t.Errorf("stale mood = %d %v, want ignored", resp.StatusCode, out)
	}
	if m := f.mustRoom(t, slug).Moods(); len(m) != 1 || m[0].EmotionKey != "bored" {
		t.Errorf("moods %+v, want bored kept", m)
	}

	resp, out = f.postJSON(t, f.client, path, `{"emotion_key":"smug"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || out["code"] != "unknown_emotion" {
		t.Errorf("unknown emotion = %d %v", resp.StatusCode, out)
	}
	resp, _ = f.postJSON(t, f.client, path, `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", resp.StatusCode)
	}
}

func TestImages(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(300))
	slug := f.createRoom(t, f.client, "Pics", "")
	f.post(t, f.client, "/r/"+slug+"/emotion", url.Values{"key": {"excited"}}, false)

	for _, path := range []string{"/map.png", "/qr.png"} {
		resp, err := f.client.Get(f.srv.URL + "/r/" + slug + path)
		if err != nil {
			t.Fatal(err)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s content type %q", path, ct)
		}
		if _, err := png.Decode(resp.Body); err != nil {
			t.Errorf("%s: %v", path, err)
		}
		resp.Body.Close()
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Live", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/r/"+slug+"/stream", nil)
	streamClient := &http.Client{Jar: f.client.Jar}
	resp, err := streamClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			return e
		case <-ctx.Done():
			t.Fatal("timed out waiting for an event")
		}
		return ""
	}
	if a, b := next(), next(); a != "map" || b != "popular" {
		t.Fatalf("initial events %q %q, want map popular", a, b)
	}

	f.post(t, newClient(t), "/r/"+slug+"/emotion", url.Values{"key": {"peaceful"}}, false)
	if a, b := next(), next(); a != "map" || b != "popular" {
		t.Errorf("events after a mood %q %q, want map popular", a, b)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	resp, body := f.get(t, f.client, "/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("healthz = %d %s", resp.StatusCode, body)
	}
}

func (f *fixture) mustRoom(t *testing.T, slug string) *room.Room {
	t.Helper()
	rm, err := f.rooms.ResolveRoom(slug)
	if err != nil {
		t.Fatalf("ResolveRoom(%q): %v", slug, err)
	}
	return rm
}

func TestFragmentErrorsCarryMessage(t *testing.T) {
	f := newFixture(t, render.DefaultOptions(600))
	slug := f.createRoom(t, f.client, "Errors", "")

	_, page := f.get(t, f.client, "/r/"+slug)
	for _, want := range []string{`id="flash"`, `data-copy="http://moodhost.example`} {
		if !strings.Contains(page, want) {
			t.Errorf("room page missing %q", want)
		}
	}

	resp, body := f.post(t, f.client, "/r/"+slug+"/emotion", url.Values{"key": {"smug"}}, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if strings.TrimSpace(body) != "Unknown emotion" {
		t.Errorf("body = %q, want the message shown to the user", body)
	}

	resp, body = f.post(t, f.client, "/r/"+slug+"/pointer", url.Values{"kind": {"down"}, "x": {"NaN"}, "y": {"1"}}, true)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "x and y must be numbers") {
		t.Errorf("pointer error = %d %q", resp.StatusCode, body)
	}
}
