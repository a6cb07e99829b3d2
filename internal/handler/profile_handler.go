package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/profile"
)

// ProfileService はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileService interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, edit profile.Edit) (*model.Profile, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileService
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type profileRequest struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
	Admin     bool      `json:"admin"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Phone:     p.Phone,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName,
		Admin:     p.IsAdmin(),
		UpdatedAt: p.UpdatedAt,
	}
}

// Get は自分のプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Update は自分のプロフィールを編集する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, profile.Edit{
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		FullName:  req.FullName,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}
