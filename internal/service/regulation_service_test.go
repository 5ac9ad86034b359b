package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type regulationStoreStub struct {
	items       map[string]models.Regulation
	lastFilter  models.RegulationFilter
	deactivated []string
}

func newRegulationStore(items ...models.Regulation) *regulationStoreStub {
	store := &regulationStoreStub{items: map[string]models.Regulation{}}
	for _, item := range items {
		store.items[item.ID] = item
	}
	return store
}

func (r *regulationStoreStub) List(ctx context.Context, filter models.RegulationFilter) ([]models.Regulation, int, error) {
	r.lastFilter = filter
	out := make([]models.Regulation, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *regulationStoreStub) FindByID(ctx context.Context, id string) (*models.Regulation, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *regulationStoreStub) Create(ctx context.Context, regulation *models.Regulation) error {
	if regulation.ID == "" {
		regulation.ID = "reg-new"
	}
	r.items[regulation.ID] = *regulation
	return nil
}

func (r *regulationStoreStub) Update(ctx context.Context, regulation *models.Regulation) error {
	r.items[regulation.ID] = *regulation
	return nil
}

func (r *regulationStoreStub) Deactivate(ctx context.Context, id string) error {
	item := r.items[id]
	item.IsActive = false
	r.items[id] = item
	r.deactivated = append(r.deactivated, id)
	return nil
}

func TestRegulationServiceCreate(t *testing.T) {
	store := newRegulationStore()
	audit := &auditLoggerStub{}
	svc := NewRegulationService(store, audit, validator.New(), nil)

	reg, err := svc.Create(context.Background(), RegulationRequest{
		Name: "Merokok di sekolah", Category: "berat", Type: "violation", Point: 50,
	}, &models.JWTClaims{UserID: "admin"})
	require.NoError(t, err)
	assert.True(t, reg.IsActive)
	assert.Equal(t, models.RegulationTypeViolation, reg.Type)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionCreate, audit.logs[0].Action)
	assert.Equal(t, models.AuditResourceRegulation, audit.logs[0].Resource)
}

func TestRegulationServiceCreateValidation(t *testing.T) {
	svc := NewRegulationService(newRegulationStore(), nil, validator.New(), nil)

	cases := map[string]RegulationRequest{
		"unknown type":  {Name: "x", Category: "c", Type: "bonus", Point: 5},
		"zero point":    {Name: "x", Category: "c", Type: "award", Point: 0},
		"negative":      {Name: "x", Category: "c", Type: "violation", Point: -5},
		"missing name":  {Category: "c", Type: "award", Point: 5},
		"missing categ": {Name: "x", Type: "award", Point: 5},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), req, nil)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestRegulationServiceUpdateKeepsType(t *testing.T) {
	store := newRegulationStore(models.Regulation{ID: "reg-1", Name: "Terlambat", Category: "ringan", Type: models.RegulationTypeViolation, Point: 5, IsActive: true})
	svc := NewRegulationService(store, nil, validator.New(), nil)

	_, err := svc.Update(context.Background(), "reg-1", RegulationRequest{Name: "Terlambat", Category: "ringan", Type: "award", Point: 5}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "REGULATION_TYPE_MISMATCH", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)

	updated, err := svc.Update(context.Background(), "reg-1", RegulationRequest{Name: "Terlambat masuk", Category: "ringan", Type: "violation", Point: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Point)
	assert.True(t, updated.IsActive)
}

func TestRegulationServiceDeactivate(t *testing.T) {
	store := newRegulationStore(models.Regulation{ID: "reg-1", Type: models.RegulationTypeAward, IsActive: true})
	svc := NewRegulationService(store, nil, validator.New(), nil)

	require.NoError(t, svc.Deactivate(context.Background(), "reg-1", nil))
	require.NoError(t, svc.Deactivate(context.Background(), "reg-1", nil))
	assert.Equal(t, []string{"reg-1"}, store.deactivated)

	err := svc.Deactivate(context.Background(), "missing", nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegulationServiceListRejectsUnknownType(t *testing.T) {
	store := newRegulationStore()
	svc := NewRegulationService(store, nil, validator.New(), nil)

	_, _, err := svc.List(context.Background(), RegulationListRequest{Type: "bonus"})
	require.Error(t, err)

	_, pagination, err := svc.List(context.Background(), RegulationListRequest{Type: "award", PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, models.RegulationTypeAward, store.lastFilter.Type)
}
