package kits

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/stock"
	dbpkg "github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/outbox/payloads"
	"github.com/openaid/aid-inventory/pkg/pagination"
)

// DefaultMaxKits caps a single assembly when no limit is configured.
const DefaultMaxKits = 10000

type stockEngine interface {
	Record(ctx context.Context, kind enums.StockEventKind, fn func(tx *gorm.DB) (*models.StockEvent, error)) (ledger.Event, error)
	ApplyTx(ctx context.Context, tx *gorm.DB, actor ledger.Actor, m stock.Movement) (*models.StockEvent, error)
}

type eventLister interface {
	ListPage(ctx context.Context, filter ledger.Filter, params pagination.Params) (*ledger.Page, error)
}

// Service manages kit templates and assembles kits from components.
type Service interface {
	CreateTemplate(ctx context.Context, actor ledger.Actor, input CreateTemplateInput) (*TemplateDTO, error)
	ListTemplates(ctx context.Context, includeInactive bool) ([]TemplateDTO, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*TemplateDTO, error)
	UpdateTemplate(ctx context.Context, actor ledger.Actor, id uuid.UUID, input UpdateTemplateInput) (*TemplateDTO, error)
	Plan(ctx context.Context, templateID uuid.UUID, quantity int) (*Plan, error)
	Preview(ctx context.Context, templateID uuid.UUID, quantity int) (*Preview, error)
	Assemble(ctx context.Context, actor ledger.Actor, input AssembleInput) (*ledger.AssemblyEvent, error)
	ListAssemblies(ctx context.Context, params pagination.Params) (*ledger.Page, error)
}

type ServiceParams struct {
	DB      dbpkg.TxRunner
	Conn    *gorm.DB
	Repo    Repository
	Engine  stockEngine
	Events  eventLister
	Outbox  outbox.Emitter
	MaxKits int
}

type service struct {
	db      dbpkg.TxRunner
	conn    *gorm.DB
	repo    Repository
	engine  stockEngine
	events  eventLister
	outbox  outbox.Emitter
	maxKits int
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Conn == nil:
		return nil, fmt.Errorf("database connection required")
	case params.Repo == nil:
		return nil, fmt.Errorf("kit repository required")
	case params.Engine == nil:
		return nil, fmt.Errorf("stock engine required")
	case params.Events == nil:
		return nil, fmt.Errorf("event lister required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	maxKits := params.MaxKits
	if maxKits <= 0 {
		maxKits = DefaultMaxKits
	}
	return &service{
		db:      params.DB,
		conn:    params.Conn,
		repo:    params.Repo,
		engine:  params.Engine,
		events:  params.Events,
		outbox:  params.Outbox,
		maxKits: maxKits,
	}, nil
}

func (s *service) CreateTemplate(ctx context.Context, actor ledger.Actor, input CreateTemplateInput) (*TemplateDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Template name is required")
	}

	var created models.KitTemplate
	var items map[uuid.UUID]models.Item
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.NameTaken(ctx, name, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check template name")
		}
		if taken {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "Kit template '%s' already exists", name)
		}
		items, err = validateComposition(ctx, tx, input.KitItemID, input.Components)
		if err != nil {
			return err
		}

		created = models.KitTemplate{
			Name:        name,
			Description: input.Description,
			KitItemID:   input.KitItemID,
			IsActive:    true,
			CreatedBy:   actor.UserRef(),
			Components:  toComponents(input.Components),
		}
		if err := repo.Create(ctx, &created); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "Kit template '%s' already exists", name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create kit template")
		}
		return s.emitChanged(ctx, tx, created, payloads.KitTemplateCreated)
	})
	if err != nil {
		return nil, err
	}
	dto := toTemplateDTO(created, items)
	return &dto, nil
}

func (s *service) ListTemplates(ctx context.Context, includeInactive bool) ([]TemplateDTO, error) {
	templates, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list kit templates")
	}
	ids := make([]uuid.UUID, 0)
	for _, t := range templates {
		ids = append(ids, templateItemIDs(t)...)
	}
	items, err := loadItems(ctx, s.conn, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateDTO(t, items))
	}
	return out, nil
}

func (s *service) GetTemplate(ctx context.Context, id uuid.UUID) (*TemplateDTO, error) {
	template, err := s.findTemplate(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, s.conn, templateItemIDs(*template))
	if err != nil {
		return nil, err
	}
	dto := toTemplateDTO(*template, items)
	return &dto, nil
}

func (s *service) UpdateTemplate(ctx context.Context, actor ledger.Actor, id uuid.UUID, input UpdateTemplateInput) (*TemplateDTO, error) {
	var (
		template *models.KitTemplate
		items    map[uuid.UUID]models.Item
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		template, err = s.findTemplate(ctx, repo, id, false)
		if err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "Template name is required")
			}
			taken, err := repo.NameTaken(ctx, name, &template.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check template name")
			}
			if taken {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "Kit template '%s' already exists", name)
			}
			template.Name = name
		}
		if input.Description.Set {
			template.Description = input.Description.Value
		}
		if input.IsActive != nil {
			template.IsActive = *input.IsActive
		}
		if input.Components != nil {
			if _, err := validateComposition(ctx, tx, template.KitItemID, *input.Components); err != nil {
				return err
			}
			components := toComponents(*input.Components)
			if err := repo.ReplaceComponents(ctx, template.ID, components); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace kit components")
			}
			template.Components = components
		}
		if err := repo.Save(ctx, template); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update kit template")
		}
		items, err = loadItems(ctx, tx, templateItemIDs(*template))
		if err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, *template, payloads.KitTemplateUpdated)
	})
	if err != nil {
		return nil, err
	}
	dto := toTemplateDTO(*template, items)
	return &dto, nil
}

func (s *service) Plan(ctx context.Context, templateID uuid.UUID, quantity int) (*Plan, error) {
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}
	template, err := s.findTemplate(ctx, s.repo, templateID, false)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, s.conn, templateItemIDs(*template))
	if err != nil {
		return nil, err
	}
	plan := buildPlan(*template, quantity, items)
	return &plan, nil
}

func (s *service) Preview(ctx context.Context, templateID uuid.UUID, quantity int) (*Preview, error) {
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}
	template, err := s.findTemplate(ctx, s.repo, templateID, true)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, s.conn, templateItemIDs(*template))
	if err != nil {
		return nil, err
	}
	plan := buildPlan(*template, quantity, items)

	preview := &Preview{
		TemplateID:        template.ID,
		TemplateName:      template.Name,
		KitItemID:         template.KitItemID,
		KitItemName:       items[template.KitItemID].Name,
		Quantity:          quantity,
		Components:        make([]PreviewLine, 0, len(plan.Lines)),
		CanAssemble:       true,
		InsufficientItems: []string{},
	}
	for _, line := range plan.Lines {
		available := items[line.ItemID].CurrentStockLevel
		sufficient := available.GreaterThanOrEqual(line.Required)
		if !sufficient {
			preview.CanAssemble = false
			preview.InsufficientItems = append(preview.InsufficientItems, line.ItemName)
		}
		preview.Components = append(preview.Components, PreviewLine{
			PlanLine:   line,
			Available:  available,
			Sufficient: sufficient,
		})
	}
	return preview, nil
}

// Assemble consumes components and adds kits in one stock event. Every short
// component is reported; nothing changes unless all are covered.
func (s *service) Assemble(ctx context.Context, actor ledger.Actor, input AssembleInput) (*ledger.AssemblyEvent, error) {
	event, err := s.engine.Record(ctx, enums.StockEventAssembly, func(tx *gorm.DB) (*models.StockEvent, error) {
		if err := s.validateQuantity(input.Quantity); err != nil {
			return nil, err
		}
		template, err := s.findTemplate(ctx, s.repo.WithTx(tx), input.TemplateID, true)
		if err != nil {
			return nil, err
		}
		items, err := loadItems(ctx, tx, templateItemIDs(*template))
		if err != nil {
			return nil, err
		}
		if _, ok := items[template.KitItemID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Kit item not found")
		}

		plan := buildPlan(*template, input.Quantity, items)
		var short []ShortComponent
		for _, line := range plan.Lines {
			item, ok := items[line.ItemID]
			if !ok {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Component item %s not found", line.ItemID)
			}
			if item.CurrentStockLevel.LessThan(line.Required) {
				short = append(short, ShortComponent{
					ItemID:    item.ID,
					Name:      item.Name,
					Required:  line.Required,
					Available: item.CurrentStockLevel,
				})
			}
		}
		if len(short) > 0 {
			return nil, insufficientComponents(template.Name, input.Quantity, short)
		}

		lines := make([]stock.MovementLine, 0, len(plan.Lines)+1)
		for _, line := range plan.Lines {
			lines = append(lines, stock.MovementLine{
				ItemID:    line.ItemID,
				Quantity:  line.Required,
				Direction: enums.MovementOut,
				Role:      enums.LineRoleComponent,
			})
		}
		lines = append(lines, stock.MovementLine{
			ItemID:    template.KitItemID,
			Quantity:  decimal.NewFromInt(int64(input.Quantity)),
			Direction: enums.MovementIn,
			Role:      enums.LineRoleKit,
		})

		row, err := s.engine.ApplyTx(ctx, tx, actor, stock.Movement{
			Kind:  enums.StockEventAssembly,
			Notes: input.Notes,
			Metadata: ledger.AssemblyMetadata{
				TemplateID:    template.ID,
				TemplateName:  template.Name,
				KitsAssembled: input.Quantity,
			},
			Lines: lines,
		})
		if err != nil {
			return nil, raceAsShortage(err, template.Name, input.Quantity)
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	assembly, ok := event.(*ledger.AssemblyEvent)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unexpected event type for assembly")
	}
	return assembly, nil
}

func (s *service) ListAssemblies(ctx context.Context, params pagination.Params) (*ledger.Page, error) {
	return s.events.ListPage(ctx, ledger.Filter{Kinds: []enums.StockEventKind{enums.StockEventAssembly}}, params)
}

func (s *service) validateQuantity(quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "Quantity must be a positive whole number")
	}
	if quantity > s.maxKits {
		return pkgerrors.Newf(pkgerrors.CodeInvalidQuantity, "Quantity cannot exceed %d kits per assembly", s.maxKits)
	}
	return nil
}

func (s *service) findTemplate(ctx context.Context, repo Repository, id uuid.UUID, activeOnly bool) (*models.KitTemplate, error) {
	template, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kit template")
	}
	if template == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Kit template not found")
	}
	if activeOnly && !template.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Kit template not found or inactive")
	}
	return template, nil
}

func (s *service) emitChanged(ctx context.Context, tx *gorm.DB, t models.KitTemplate, action payloads.KitTemplateChangeAction) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventKitTemplateChanged,
		AggregateType: enums.AggregateKitTemplate,
		AggregateID:   t.ID,
		Data: payloads.KitTemplateChanged{
			TemplateID:     t.ID,
			Name:           t.Name,
			KitItemID:      t.KitItemID,
			IsActive:       t.IsActive,
			ComponentCount: len(t.Components),
			Action:         action,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue kit template event")
	}
	return nil
}

func buildPlan(t models.KitTemplate, quantity int, items map[uuid.UUID]models.Item) Plan {
	q := decimal.NewFromInt(int64(quantity))
	plan := Plan{TemplateID: t.ID, Quantity: quantity, Lines: make([]PlanLine, 0, len(t.Components))}
	for _, c := range t.Components {
		plan.Lines = append(plan.Lines, PlanLine{
			ItemID:         c.ItemID,
			ItemName:       items[c.ItemID].Name,
			QuantityPerKit: c.QuantityPerKit,
			Required:       c.QuantityPerKit.Mul(q),
		})
	}
	return plan
}

func insufficientComponents(templateName string, quantity int, short []ShortComponent) *pkgerrors.Error {
	parts := make([]string, 0, len(short))
	for _, c := range short {
		parts = append(parts, fmt.Sprintf("%s (required %s, available %s)", c.Name, c.Required.String(), c.Available.String()))
	}
	return pkgerrors.Newf(pkgerrors.CodeInsufficientComponents,
		"Insufficient components to assemble %d x %s: %s", quantity, templateName, strings.Join(parts, ", "),
	).WithDetails(map[string]any{"components": short})
}

// raceAsShortage reports a balance that moved between the check and the update
// the same way as a shortage found up front.
func raceAsShortage(err error, templateName string, quantity int) error {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return err
	}
	details, ok := typed.Details().(stock.InsufficientStockDetails)
	if !ok {
		return err
	}
	return insufficientComponents(templateName, quantity, []ShortComponent{{
		ItemID:    details.ItemID,
		Name:      details.ItemName,
		Required:  details.Requested,
		Available: details.Available,
	}})
}

func toComponents(inputs []ComponentInput) []models.KitTemplateComponent {
	out := make([]models.KitTemplateComponent, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, models.KitTemplateComponent{ItemID: in.ItemID, QuantityPerKit: in.Quantity})
	}
	return out
}

func templateItemIDs(t models.KitTemplate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Components)+1)
	ids = append(ids, t.KitItemID)
	for _, c := range t.Components {
		ids = append(ids, c.ItemID)
	}
	return ids
}

func loadItems(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	items, err := stock.NewStore().LoadItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	return items, nil
}
