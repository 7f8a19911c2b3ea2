package gateway

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/auth"
	"github.com/scholaris/core/common"
)

// setSessionCookies sets the access and refresh token cookies per spec.md
// §4.1: HTTP-only, SameSite=lax, Secure unless debug is on, with lifetimes
// matching the token's own expiry.
func (s *Server) setSessionCookies(c echo.Context, accessToken, refreshToken string, accessTTL, refreshTTL int) {
	secure := !s.config.Debug
	c.SetCookie(&http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   accessTTL,
	})
	c.SetCookie(&http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   refreshTTL,
	})
}

func clearSessionCookies(c echo.Context) {
	for _, name := range []string{"access_token", "refresh_token"} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
	}
}

func (s *Server) handleRegister(c echo.Context) error {
	var req auth.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}

	result, err := s.authSvc.Register(c.Request().Context(), req)
	if err != nil {
		return mapAuthError(err)
	}

	s.setSessionCookies(c, result.AccessToken, result.RefreshToken, result.ExpiresIn, int((7 * 24 * time.Hour).Seconds()))
	return c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}

	result, err := s.authSvc.Login(c.Request().Context(), req.Email, req.Password, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return mapAuthError(err)
	}

	s.setSessionCookies(c, result.AccessToken, result.RefreshToken, result.ExpiresIn, int((7 * 24 * time.Hour).Seconds()))
	return c.JSON(http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	_ = c.Bind(&req)

	token := req.RefreshToken
	if token == "" {
		if cookie, err := c.Cookie("refresh_token"); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return common.ErrValidation("refresh_token is required")
	}

	pair, err := s.authSvc.Refresh(c.Request().Context(), token, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return mapAuthError(err)
	}

	s.setSessionCookies(c, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn, int((7 * 24 * time.Hour).Seconds()))
	return c.JSON(http.StatusOK, pair)
}

func (s *Server) handleLogout(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		if cookie, err := c.Cookie("access_token"); err == nil {
			token = cookie.Value
		}
	}
	if token != "" {
		_ = s.authSvc.Logout(c.Request().Context(), token)
	}
	clearSessionCookies(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	p, _ := getPrincipal(c)
	user, err := s.authSvc.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return common.ErrNotFound("user not found")
	}
	return c.JSON(http.StatusOK, user.ToResponse())
}

func (s *Server) handleUpdateMe(c echo.Context) error {
	p, _ := getPrincipal(c)
	var req auth.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	req.Role = nil // self-update can never change role
	req.Disabled = nil

	user, err := s.authSvc.UpdateUser(c.Request().Context(), p.UserID, req)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, user.ToResponse())
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(c echo.Context) error {
	p, _ := getPrincipal(c)
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	if err := s.authSvc.ChangePassword(c.Request().Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return mapAuthError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createAPICredentialRequest struct {
	Label     string     `json:"label"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleCreateAPICredential(c echo.Context) error {
	p, _ := getPrincipal(c)
	var req createAPICredentialRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	cred, err := s.authSvc.CreateAPICredential(c.Request().Context(), p.UserID, req.Label, req.ExpiresAt)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusCreated, cred)
}

func (s *Server) handleListAPICredentials(c echo.Context) error {
	p, _ := getPrincipal(c)
	creds, err := s.authSvc.ListAPICredentials(c.Request().Context(), p.UserID)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, creds)
}

func (s *Server) handleRevokeAPICredential(c echo.Context) error {
	p, _ := getPrincipal(c)
	if err := s.authSvc.RevokeAPICredential(c.Request().Context(), p.UserID, c.Param("id")); err != nil {
		return mapAuthError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAdminListUsers(c echo.Context) error {
	limit, offset := pagination(c)
	users, err := s.authSvc.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return mapAuthError(err)
	}
	resp := make([]*auth.UserResponse, len(users))
	for i, u := range users {
		resp[i] = u.ToResponse()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAdminCreateUser(c echo.Context) error {
	var req auth.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	user, err := s.authSvc.CreateUser(c.Request().Context(), req, role)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusCreated, user.ToResponse())
}

func (s *Server) handleAdminUpdateUser(c echo.Context) error {
	var req auth.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	user, err := s.authSvc.UpdateUser(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, user.ToResponse())
}

// mapAuthError classifies auth package sentinel errors into the error
// taxonomy from spec.md §7.
func mapAuthError(err error) error {
	switch err {
	case auth.ErrInvalidCredentials, auth.ErrInvalidToken, auth.ErrExpiredToken, auth.ErrBlacklistedToken, auth.ErrRefreshRevoked, auth.ErrAPICredentialInvalid:
		return common.ErrAuthentication(err.Error())
	case auth.ErrAccountDisabled, auth.ErrForbidden, auth.ErrUnauthorized:
		return common.ErrAuthorization(err.Error())
	case auth.ErrUserNotFound:
		return common.ErrNotFound(err.Error())
	case auth.ErrUserExists:
		return common.ErrConflict(err.Error())
	case auth.ErrWeakPassword, auth.ErrInvalidEmail, auth.ErrEmptyPassword, auth.ErrPasswordTooShort, auth.ErrSelfDelete, auth.ErrRegistrationDisabled:
		return common.ErrValidation(err.Error())
	default:
		return common.ErrInternal(err.Error())
	}
}
