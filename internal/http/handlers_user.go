package http

import (
	"log/slog"
	"net/http"

	"saldo/internal/core"
)

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var (
		users []core.User
		err   error
	)
	if r.URL.Query().Get("verified") == "true" {
		users, err = s.users.ListVerifiedUsers(r.Context())
	} else {
		users, err = s.users.ListUsers(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := core.User{
		Name:     sanitizeInput(req.Name),
		Email:    sanitizeInput(req.Email),
		Verified: req.Verified,
	}
	if err := u.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := s.users.CreateUser(r.Context(), u)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	u.ID = id

	slog.InfoContext(r.Context(), "User created", "user_id", id, "verified", u.Verified)
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}
