package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authmw "github.com/mind-engage/secacademy-lms/internal/auth/middleware"
	"github.com/mind-engage/secacademy-lms/internal/rbac"
)

const (
	guestCookie    = "sa_guest"
	guestPrefix    = "guest|"
	guestCookieTTL = 30 * 24 * time.Hour
)

// GuestLoginHandler issues a student token for an anonymous visitor so they
// can try public quizzes. The guest identity is kept in a signed cookie and
// reused on later visits from the same browser.
func GuestLoginHandler(a *authmw.AuthService, enabled bool) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			http.Error(w, "guest auth disabled", http.StatusForbidden)
			return
		}

		userID := ""
		if c, err := r.Cookie(guestCookie); err == nil && c.Value != "" {
			if claims, err := a.Parse(c.Value); err == nil && strings.HasPrefix(claims.Sub, guestPrefix) {
				userID = claims.Sub
			}
		}
		if userID == "" {
			userID = guestPrefix + uuid.NewString()
		}

		tok, err := a.IssueJWT(userID, rbac.RoleStudent)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		cookieTok, err := a.IssueJWTWithTTL(userID, "", guestCookieTTL)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     guestCookie,
			Value:    cookieTok,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
			Expires:  time.Now().Add(guestCookieTTL),
		})
		w.Header().Set("Content-Type", "application/json")
		suffix := strings.TrimPrefix(userID, guestPrefix)
		if len(suffix) > 6 {
			suffix = suffix[len(suffix)-6:]
		}
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Username: "guest-" + suffix})
	}
}
