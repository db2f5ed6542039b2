package kits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/pkg/db/dbtest"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/pagination"
	"github.com/openaid/aid-inventory/pkg/types"
)

type fixture struct {
	db    *gorm.DB
	svc   Service
	actor ledger.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	ledgerRepo := ledger.NewRepository(conn)
	engine, err := stock.NewEngine(stock.EngineParams{DB: client, Ledger: ledgerRepo, Outbox: emitter})
	require.NoError(t, err)
	events, err := ledger.NewService(conn, ledgerRepo)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:     client,
		Conn:   conn,
		Repo:   NewRepository(conn),
		Engine: engine,
		Events: events,
		Outbox: emitter,
	})
	require.NoError(t, err)

	user := models.User{Username: "kitter", Email: "kitter@example.org", Role: enums.UserRoleWarehouseManager, PasswordHash: "x", IsActive: true}
	require.NoError(t, conn.Create(&user).Error)
	return &fixture{db: conn, svc: svc, actor: ledger.Actor{UserID: user.ID, Role: user.Role}}
}

func (f *fixture) item(t *testing.T, name string, category enums.ItemCategory, stockLevel int64) models.Item {
	t.Helper()
	item := models.Item{Name: name, Category: category, UnitOfMeasure: "unit", CurrentStockLevel: decimal.NewFromInt(stockLevel)}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func (f *fixture) level(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.First(&item, "id = ?", id).Error)
	return item.CurrentStockLevel
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// hygieneKit builds template A x2, B x3 with 10 of each in stock.
func (f *fixture) hygieneKit(t *testing.T) (TemplateDTO, models.Item, models.Item, models.Item) {
	t.Helper()
	kit := f.item(t, "Hygiene Kit", enums.ItemCategoryAssembledKit, 0)
	a := f.item(t, "Soap", enums.ItemCategoryPurchasedItem, 10)
	b := f.item(t, "Toothbrush", enums.ItemCategoryDonated, 10)
	tpl, err := f.svc.CreateTemplate(context.Background(), f.actor, CreateTemplateInput{
		Name:      "Hygiene",
		KitItemID: kit.ID,
		Components: []ComponentInput{
			{ItemID: a.ID, Quantity: d(2)},
			{ItemID: b.ID, Quantity: d(3)},
		},
	})
	require.NoError(t, err)
	return *tpl, kit, a, b
}

func TestAssembleReportsShortComponentsAndChangesNothing(t *testing.T) {
	f := newFixture(t)
	tpl, kit, a, b := f.hygieneKit(t)

	_, err := f.svc.Assemble(context.Background(), f.actor, AssembleInput{TemplateID: tpl.ID, Quantity: 4})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientComponents, typed.Code())
	assert.Contains(t, typed.Message(), "Toothbrush")
	assert.NotContains(t, typed.Message(), "Soap")

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	short, ok := details["components"].([]ShortComponent)
	require.True(t, ok)
	require.Len(t, short, 1)
	assert.Equal(t, b.ID, short[0].ItemID)
	assert.True(t, short[0].Required.Equal(d(12)))
	assert.True(t, short[0].Available.Equal(d(10)))

	assert.True(t, f.level(t, a.ID).Equal(d(10)))
	assert.True(t, f.level(t, b.ID).Equal(d(10)))
	assert.True(t, f.level(t, kit.ID).IsZero())

	var events int64
	require.NoError(t, f.db.Model(&models.StockEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestAssembleConsumesComponents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl, kit, a, b := f.hygieneKit(t)
	notes := "weekend shift"

	event, err := f.svc.Assemble(ctx, f.actor, AssembleInput{TemplateID: tpl.ID, Quantity: 3, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, enums.StockEventAssembly, event.Kind)
	assert.Equal(t, 3, event.KitsAssembled)
	assert.Equal(t, "Hygiene", event.TemplateName)
	assert.Equal(t, kit.ID, event.Kit.ItemID)
	assert.True(t, event.Kit.BalanceAfter.Equal(d(3)))
	require.Len(t, event.Consumed, 2)

	assert.True(t, f.level(t, a.ID).Equal(d(4)))
	assert.True(t, f.level(t, b.ID).Equal(d(1)))
	assert.True(t, f.level(t, kit.ID).Equal(d(3)))

	page, err := f.svc.ListAssemblies(ctx, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, event.ID, page.Events[0].Header().ID)
}

func TestAssembleQuantityBounds(t *testing.T) {
	f := newFixture(t)
	tpl, _, _, _ := f.hygieneKit(t)

	for _, q := range []int{0, -1, DefaultMaxKits + 1} {
		_, err := f.svc.Assemble(context.Background(), f.actor, AssembleInput{TemplateID: tpl.ID, Quantity: q})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity), "quantity %d", q)
	}
}

func TestAssembleInactiveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl, _, _, _ := f.hygieneKit(t)
	inactive := false
	_, err := f.svc.UpdateTemplate(ctx, f.actor, tpl.ID, UpdateTemplateInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Assemble(ctx, f.actor, AssembleInput{TemplateID: tpl.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	active, err := f.svc.ListTemplates(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.svc.ListTemplates(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPreviewTouchesNothing(t *testing.T) {
	f := newFixture(t)
	tpl, _, a, _ := f.hygieneKit(t)

	preview, err := f.svc.Preview(context.Background(), tpl.ID, 4)
	require.NoError(t, err)
	assert.False(t, preview.CanAssemble)
	assert.Equal(t, []string{"Toothbrush"}, preview.InsufficientItems)
	require.Len(t, preview.Components, 2)
	assert.True(t, preview.Components[0].Sufficient)
	assert.True(t, preview.Components[0].Required.Equal(d(8)))
	assert.True(t, f.level(t, a.ID).Equal(d(10)))

	plan, err := f.svc.Plan(context.Background(), tpl.ID, 2)
	require.NoError(t, err)
	assert.True(t, plan.Lines[1].Required.Equal(d(6)))
}

func TestCreateTemplateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kit := f.item(t, "Food Kit", enums.ItemCategoryAssembledKit, 0)
	otherKit := f.item(t, "Baby Kit", enums.ItemCategoryAssembledKit, 0)
	rice := f.item(t, "Rice", enums.ItemCategoryRawMaterial, 0)

	cases := []struct {
		name  string
		input CreateTemplateInput
		code  pkgerrors.Code
	}{
		{"no components", CreateTemplateInput{Name: "x", KitItemID: kit.ID}, pkgerrors.CodeValidation},
		{"kit not assembled", CreateTemplateInput{Name: "x", KitItemID: rice.ID, Components: []ComponentInput{{ItemID: kit.ID, Quantity: d(1)}}}, pkgerrors.CodeValidation},
		{"kit missing", CreateTemplateInput{Name: "x", KitItemID: uuid.New(), Components: []ComponentInput{{ItemID: rice.ID, Quantity: d(1)}}}, pkgerrors.CodeNotFound},
		{"nested kit", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: otherKit.ID, Quantity: d(1)}}}, pkgerrors.CodeValidation},
		{"self", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: kit.ID, Quantity: d(1)}}}, pkgerrors.CodeValidation},
		{"duplicate", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: d(1)}, {ItemID: rice.ID, Quantity: d(2)}}}, pkgerrors.CodeValidation},
		{"zero quantity", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: decimal.Zero}}}, pkgerrors.CodeInvalidQuantity},
		{"three decimals", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: decimal.RequireFromString("0.125")}}}, pkgerrors.CodeInvalidQuantity},
		{"oversized quantity", CreateTemplateInput{Name: "x", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: decimal.New(1, 10)}}}, pkgerrors.CodeInvalidQuantity},
		{"blank name", CreateTemplateInput{Name: "  ", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: d(1)}}}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTemplate(ctx, f.actor, tc.input)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	_, err := f.svc.CreateTemplate(ctx, f.actor, CreateTemplateInput{Name: "Food", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: d(1)}}})
	require.NoError(t, err)
	_, err = f.svc.CreateTemplate(ctx, f.actor, CreateTemplateInput{Name: "food", KitItemID: kit.ID, Components: []ComponentInput{{ItemID: rice.ID, Quantity: d(1)}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestUpdateTemplateReplacesComponents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl, _, a, _ := f.hygieneKit(t)
	name := "Hygiene Plus"
	desc := "two soaps"

	updated, err := f.svc.UpdateTemplate(ctx, f.actor, tpl.ID, UpdateTemplateInput{
		Name:        &name,
		Description: types.Of(desc),
		Components:  &[]ComponentInput{{ItemID: a.ID, Quantity: d(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hygiene Plus", updated.Name)
	require.NotNil(t, updated.Description)
	require.Len(t, updated.Components, 1)
	assert.Equal(t, "Soap", updated.Components[0].ItemName)

	fetched, err := f.svc.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Components, 1)

	var changes int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventKitTemplateChanged).Count(&changes).Error)
	assert.Equal(t, int64(2), changes)

	_, err = f.svc.GetTemplate(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
