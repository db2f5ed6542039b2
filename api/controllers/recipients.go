package controllers

import (
	"net/http"

	"github.com/openaid/aid-inventory/api/responses"
	"github.com/openaid/aid-inventory/api/validators"
	"github.com/openaid/aid-inventory/internal/recipients"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/types"
)

func ListRecipients(svc recipients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recipient service unavailable"))
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "active_only", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), recipients.ListFilter{
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), 100),
			ActiveOnly: activeOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type createRecipientRequest struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Notes *string `json:"notes,omitempty"`
}

func CreateRecipient(svc recipients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recipient service unavailable"))
			return
		}

		var body createRecipientRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipient, err := svc.Create(r.Context(), recipients.CreateInput{Name: body.Name, Notes: body.Notes})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, recipient)
	}
}

type updateRecipientRequest struct {
	Name     *string                `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Notes    types.Nullable[string] `json:"notes"`
	IsActive *bool                  `json:"is_active,omitempty"`
}

func UpdateRecipient(svc recipients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recipient service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRecipientRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipient, err := svc.Update(r.Context(), id, recipients.UpdateInput{
			Name:     body.Name,
			Notes:    body.Notes,
			IsActive: body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, recipient)
	}
}
