package controllers

import (
	"net/http"

	"github.com/openaid/aid-inventory/api/middleware"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

// actorFromRequest builds the ledger actor from the authenticated context.
func actorFromRequest(r *http.Request) (ledger.Actor, error) {
	userID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		return ledger.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return ledger.Actor{
		UserID: userID,
		Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
	}, nil
}
