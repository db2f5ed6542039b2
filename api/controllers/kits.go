package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openaid/aid-inventory/api/responses"
	"github.com/openaid/aid-inventory/api/validators"
	"github.com/openaid/aid-inventory/internal/kits"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/pagination"
	"github.com/openaid/aid-inventory/pkg/types"
)

type componentRequest struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

func toComponentInputs(in []componentRequest) []kits.ComponentInput {
	out := make([]kits.ComponentInput, 0, len(in))
	for _, c := range in {
		out = append(out, kits.ComponentInput{ItemID: c.ItemID, Quantity: c.Quantity})
	}
	return out
}

type createTemplateRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description *string            `json:"description,omitempty"`
	KitItemID   uuid.UUID          `json:"kit_item_id" validate:"required"`
	Components  []componentRequest `json:"components" validate:"dive"`
}

func ListKitTemplates(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListTemplates(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CreateKitTemplate(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		template, err := svc.CreateTemplate(r.Context(), actor, kits.CreateTemplateInput{
			Name:        body.Name,
			Description: body.Description,
			KitItemID:   body.KitItemID,
			Components:  toComponentInputs(body.Components),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, template)
	}
}

func GetKitTemplate(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		template, err := svc.GetTemplate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, template)
	}
}

type updateTemplateRequest struct {
	Name        *string                `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description types.Nullable[string] `json:"description"`
	IsActive    *bool                  `json:"is_active,omitempty"`
	Components  *[]componentRequest    `json:"components,omitempty"`
}

// UpdateKitTemplate edits a template; a components list replaces the whole composition.
func UpdateKitTemplate(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := kits.UpdateTemplateInput{
			Name:        body.Name,
			Description: body.Description,
			IsActive:    body.IsActive,
		}
		if body.Components != nil {
			components := toComponentInputs(*body.Components)
			input.Components = &components
		}

		template, err := svc.UpdateTemplate(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, template)
	}
}

type assemblyRequest struct {
	KitTemplateID uuid.UUID `json:"kit_template_id" validate:"required"`
	Quantity      int       `json:"quantity"`
	Notes         *string   `json:"notes,omitempty"`
}

func PreviewAssembly(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		var body assemblyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := svc.Preview(r.Context(), body.KitTemplateID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func AssembleKit(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assemblyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Assemble(r.Context(), actor, kits.AssembleInput{
			TemplateID: body.KitTemplateID,
			Quantity:   body.Quantity,
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, event)
	}
}

func ListAssemblies(svc kits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListAssemblies(r.Context(), pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
