package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	anonCookieName   = "mm_anon"
	accessCookiePref = "mm_access_"
	anonCookieMaxAge = 365 * 24 * time.Hour
)

// anonID returns the browser's anonymous identity, issuing one on first use.
func anonID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(anonCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(anonCookieMaxAge),
	})
	return id
}

func accessTokenFromCookie(r *http.Request, roomID string) string {
	cookie, err := r.Cookie(accessCookiePref + roomID)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setAccessCookie(w http.ResponseWriter, roomID, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookiePref + roomID,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}
