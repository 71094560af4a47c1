package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/database"
	"golang.org/x/crypto/bcrypt"
)

const defaultJwtExpiration = 24 * time.Hour

type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *GoChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if req.Username == "" || req.Name == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		Name:         req.Name,
		Bio:          req.Bio,
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !s.startSession(w, newUser.Id) {
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (s *GoChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByUsername(lr.Username)
	if err != nil {
		errResp := NewInternalServerError(err)
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewUnauthorizedError()
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.startSession(w, dbUser.Id) {
		return
	}

	s.writeJson(w, http.StatusOK, toUser(dbUser))
}

func (s *GoChatApp) startSession(w http.ResponseWriter, userId int) bool {
	token, err := s.authn.CreateToken(userId, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return false
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	return true
}

func (s *GoChatApp) logout(w http.ResponseWriter, r *http.Request) {
	if userId, ok := UserId(r.Context()); ok {
		if n := s.cs.DisconnectUser(userId); n > 0 {
			s.log.Printf("closed %d connection(s) of user %d on logout", n, userId)
		}
	}

	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	user, ok := User(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

// updateAvatar replaces the user's avatar. The previous blob is deleted on
// a best effort basis.
func (s *GoChatApp) updateAvatar(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	headers := r.MultipartForm.File["avatar"]
	if len(headers) != 1 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	files, err := readFiles(headers)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	current, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	blobs, err := s.blobs.Upload(r.Context(), files)
	if err != nil {
		s.writeError(w, err)
		return
	}

	updated, err := s.db.UpdateAvatar(database.UpdateAvatarParams{
		UserId:    userId,
		AvatarId:  blobs[0].PublicId,
		AvatarUrl: blobs[0].Url,
	})
	if err != nil {
		s.deleteBlobs(r.Context(), []string{blobs[0].PublicId})
		s.writeError(w, err)
		return
	}

	if current.AvatarId != "" {
		s.deleteBlobs(r.Context(), []string{current.AvatarId})
	}

	s.writeJson(w, http.StatusOK, toUser(updated))
}

func (s *GoChatApp) deleteBlobs(ctx context.Context, ids []string) {
	if err := s.blobs.Delete(ctx, ids); err != nil {
		s.log.Printf("delete blobs %v: %v", ids, err)
	}
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     auth.TokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
