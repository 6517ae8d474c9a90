package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/erpauth/internal/models"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccountLookup loads accounts by id.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// AdminHandler handles admin-only account HTTP requests.
type AdminHandler struct {
	accounts AccountLookup
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts AccountLookup) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

// GetAccount handles GET /admin/accounts/{id}
func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "account id is required")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		// The caller is an authenticated admin, so absence is not a secret here.
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteError(w, http.StatusNotFound, models.KindNotFound.String(), "No account found with that ID")
			return
		}
		pkghttp.WriteAppError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AccountEnvelope{
		Status: "success",
		Data:   models.AccountData{Account: account.ToResponse()},
	})
}
