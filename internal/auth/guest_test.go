package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmw "github.com/mind-engage/secacademy-lms/internal/auth/middleware"
	"github.com/mind-engage/secacademy-lms/internal/rbac"
)

func TestGuestLoginReusesCookieIdentity(t *testing.T) {
	a := authmw.NewAuthService("secret")
	h := GuestLoginHandler(a, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	first, err := a.Parse(body.AccessToken)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Sub, "guest|"))
	assert.Equal(t, rbac.RoleStudent, first.Role)
	assert.True(t, strings.HasPrefix(body.Username, "guest-"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	second, err := a.Parse(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, first.Sub, second.Sub)
}

func TestGuestLoginForgedCookieGetsNewIdentity(t *testing.T) {
	a := authmw.NewAuthService("secret")
	h := GuestLoginHandler(a, true)

	forged, err := authmw.NewAuthService("attacker").IssueJWT("guest|victim", "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	req.AddCookie(&http.Cookie{Name: guestCookie, Value: forged})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	c, err := a.Parse(body.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, "guest|victim", c.Sub)
}

func TestGuestLoginDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	GuestLoginHandler(authmw.NewAuthService("secret"), false).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
