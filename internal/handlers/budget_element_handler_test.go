package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

const testElementID = "0190f3a2-1c4b-7d8e-9f00-0000000000b1"

// --- mock budget element and export services ---

type mockBudgetElementService struct {
	createFn  func(userID string, in services.BudgetElementInput) (*models.BudgetElement, error)
	listFn    func(userID string, page pagination.PageRequest, filter services.BudgetElementFilter) (*pagination.PageResponse[models.BudgetElement], error)
	getByIDFn func(userID, elementID string) (*models.BudgetElement, error)
	updateFn  func(userID, elementID string, update services.BudgetElementUpdate) (*models.BudgetElement, error)
	deleteFn  func(userID, elementID string) error
}

func (m *mockBudgetElementService) CreateBudgetElement(_ context.Context, userID string, in services.BudgetElementInput) (*models.BudgetElement, error) {
	if m.createFn != nil {
		return m.createFn(userID, in)
	}
	return &models.BudgetElement{}, nil
}

func (m *mockBudgetElementService) GetUserBudgetElements(_ context.Context, userID string, page pagination.PageRequest, filter services.BudgetElementFilter) (*pagination.PageResponse[models.BudgetElement], error) {
	if m.listFn != nil {
		return m.listFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.BudgetElement{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetElementService) GetBudgetElementByID(_ context.Context, userID, elementID string) (*models.BudgetElement, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(userID, elementID)
	}
	return &models.BudgetElement{}, nil
}

func (m *mockBudgetElementService) UpdateBudgetElement(_ context.Context, userID, elementID string, update services.BudgetElementUpdate) (*models.BudgetElement, error) {
	if m.updateFn != nil {
		return m.updateFn(userID, elementID, update)
	}
	return &models.BudgetElement{}, nil
}

func (m *mockBudgetElementService) DeleteBudgetElement(_ context.Context, userID, elementID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(userID, elementID)
	}
	return nil
}

var _ services.BudgetElementServicer = (*mockBudgetElementService)(nil)

type mockExportService struct {
	exportFn func(userID string, filter services.BudgetElementFilter, w io.Writer) error
}

func (m *mockExportService) ExportBudgetElements(_ context.Context, userID string, filter services.BudgetElementFilter, w io.Writer) error {
	if m.exportFn != nil {
		return m.exportFn(userID, filter, w)
	}
	return nil
}

var _ services.ExportServicer = (*mockExportService)(nil)

func setupBudgetElementRouter(handler *BudgetElementHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budget-elements", handler.CreateBudgetElement)
	auth.GET("/budget-elements", handler.GetUserBudgetElements)
	auth.GET("/budget-elements/export", handler.ExportBudgetElements)
	auth.GET("/budget-elements/:id", handler.GetBudgetElementByID)
	auth.PUT("/budget-elements/:id", handler.UpdateBudgetElement)
	auth.DELETE("/budget-elements/:id", handler.DeleteBudgetElement)
	return r
}

func TestBudgetElementHandler_CreateBudgetElement(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.BudgetElementInput
		svc := &mockBudgetElementService{
			createFn: func(userID string, in services.BudgetElementInput) (*models.BudgetElement, error) {
				got = in
				return &models.BudgetElement{
					Base:       models.Base{ID: testElementID},
					UserID:     userID,
					WalletID:   in.WalletID,
					CategoryID: in.CategoryID,
					Name:       in.Name,
					Amount:     in.Amount,
					Type:       in.Type,
				}, nil
			},
		}
		handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		body := fmt.Sprintf(`{"wallet_id":%q,"category_id":%q,"name":"Lunch","amount":12.5,"type":"expense","date":"2024-03-01T12:00:00Z"}`,
			testWalletID, testCategoryID)
		rec := doRequest(r, "POST", "/budget-elements", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Amount.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("expected amount 12.5, got %s", got.Amount)
		}
		if got.Date == nil || !got.Date.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", got.Date)
		}
		element := parseJSON(t, rec)["budget_element"].(map[string]interface{})
		if element["wallet_id"] != testWalletID || element["amount"] != "12.5" {
			t.Errorf("unexpected element %v", element)
		}
	})

	t.Run("returns 422 listing every invalid field", func(t *testing.T) {
		handler := NewBudgetElementHandler(&mockBudgetElementService{}, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "POST", "/budget-elements", `{"wallet_id":"nope","type":"gift"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		fields := errorFields(t, parseJSON(t, rec))
		for _, name := range []string{"wallet_id", "category_id", "name", "amount", "type"} {
			if _, ok := fields[name]; !ok {
				t.Errorf("expected field error for %s, got %v", name, fields)
			}
		}
	})

	t.Run("returns 404 when the wallet does not exist", func(t *testing.T) {
		svc := &mockBudgetElementService{
			createFn: func(_ string, _ services.BudgetElementInput) (*models.BudgetElement, error) {
				return nil, apperrors.ErrWalletNotFound
			},
		}
		handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		body := fmt.Sprintf(`{"wallet_id":%q,"category_id":%q,"name":"Lunch","amount":"5","type":"expense"}`,
			testWalletID, testCategoryID)
		rec := doRequest(r, "POST", "/budget-elements", body)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "WALLET_NOT_FOUND")
	})
}

func TestBudgetElementHandler_GetUserBudgetElements(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		var captured services.BudgetElementFilter
		svc := &mockBudgetElementService{
			listFn: func(_ string, _ pagination.PageRequest, filter services.BudgetElementFilter) (*pagination.PageResponse[models.BudgetElement], error) {
				captured = filter
				resp := pagination.NewPageResponse([]models.BudgetElement{}, 1, 20, 0)
				return &resp, nil
			},
		}
		handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "GET", "/budget-elements?wallet_id="+testWalletID+"&type=income", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if captured.WalletID == nil || *captured.WalletID != testWalletID {
			t.Errorf("expected wallet filter, got %v", captured.WalletID)
		}
		if captured.Type == nil || *captured.Type != models.EntryTypeIncome {
			t.Errorf("expected income filter, got %v", captured.Type)
		}
		if captured.CategoryID != nil {
			t.Errorf("expected no category filter, got %v", *captured.CategoryID)
		}
	})

	t.Run("returns 422 on malformed filter", func(t *testing.T) {
		handler := NewBudgetElementHandler(&mockBudgetElementService{}, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "GET", "/budget-elements?category_id=12", "")

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestBudgetElementHandler_ExportBudgetElements(t *testing.T) {
	t.Run("returns the workbook as an attachment", func(t *testing.T) {
		exportSvc := &mockExportService{
			exportFn: func(_ string, filter services.BudgetElementFilter, w io.Writer) error {
				if filter.Type == nil || *filter.Type != models.EntryTypeExpense {
					t.Errorf("expected expense filter, got %v", filter.Type)
				}
				_, err := io.WriteString(w, "xlsx-bytes")
				return err
			},
		}
		handler := NewBudgetElementHandler(&mockBudgetElementService{}, exportSvc, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "GET", "/budget-elements/export?type=expense", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != xlsxContentType {
			t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
			t.Errorf("expected attachment, got %q", rec.Header().Get("Content-Disposition"))
		}
		if rec.Body.String() != "xlsx-bytes" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("returns a JSON error when the export fails", func(t *testing.T) {
		exportSvc := &mockExportService{
			exportFn: func(_ string, _ services.BudgetElementFilter, _ io.Writer) error {
				return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("disk full"))
			},
		}
		handler := NewBudgetElementHandler(&mockBudgetElementService{}, exportSvc, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "GET", "/budget-elements/export", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestBudgetElementHandler_GetBudgetElementByID(t *testing.T) {
	svc := &mockBudgetElementService{
		getByIDFn: func(_, _ string) (*models.BudgetElement, error) {
			return nil, apperrors.ErrBudgetElementNotFound
		},
	}
	handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
	r := setupBudgetElementRouter(handler)

	rec := doRequest(r, "GET", "/budget-elements/"+testElementID, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "BUDGET_ELEMENT_NOT_FOUND")
}

func TestBudgetElementHandler_UpdateBudgetElement(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got services.BudgetElementUpdate
		svc := &mockBudgetElementService{
			updateFn: func(_, elementID string, update services.BudgetElementUpdate) (*models.BudgetElement, error) {
				got = update
				return &models.BudgetElement{Base: models.Base{ID: elementID}, WalletID: *update.WalletID}, nil
			},
		}
		handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "PUT", "/budget-elements/"+testElementID,
			fmt.Sprintf(`{"wallet_id":%q,"amount":"7.25"}`, testWalletID))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.WalletID == nil || *got.WalletID != testWalletID {
			t.Errorf("expected wallet change, got %v", got.WalletID)
		}
		if got.Amount == nil || !got.Amount.Equal(decimal.RequireFromString("7.25")) {
			t.Errorf("expected amount 7.25, got %v", got.Amount)
		}
		if got.Name != nil || got.CategoryID != nil || got.Type != nil || got.Date != nil {
			t.Errorf("expected other fields unset, got %+v", got)
		}
	})

	t.Run("returns 422 on invalid type", func(t *testing.T) {
		handler := NewBudgetElementHandler(&mockBudgetElementService{}, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "PUT", "/budget-elements/"+testElementID, `{"type":"transfer"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when the new category is foreign", func(t *testing.T) {
		svc := &mockBudgetElementService{
			updateFn: func(_, _ string, _ services.BudgetElementUpdate) (*models.BudgetElement, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
		r := setupBudgetElementRouter(handler)

		rec := doRequest(r, "PUT", "/budget-elements/"+testElementID,
			fmt.Sprintf(`{"category_id":%q}`, testCategoryID))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestBudgetElementHandler_DeleteBudgetElement(t *testing.T) {
	var deleted string
	svc := &mockBudgetElementService{
		deleteFn: func(_, elementID string) error {
			deleted = elementID
			return nil
		},
	}
	handler := NewBudgetElementHandler(svc, &mockExportService{}, &mockAuditService{})
	r := setupBudgetElementRouter(handler)

	rec := doRequest(r, "DELETE", "/budget-elements/"+testElementID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleted != testElementID {
		t.Errorf("expected %s deleted, got %s", testElementID, deleted)
	}
}
