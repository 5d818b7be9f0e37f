package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/services"
)

type mockMaintenanceService struct {
	rebuildIndexFn func(userID string) (int, error)
}

func (m *mockMaintenanceService) RebuildIndex(_ context.Context, userID string) (int, error) {
	if m.rebuildIndexFn != nil {
		return m.rebuildIndexFn(userID)
	}
	return 0, nil
}

var _ services.MaintenanceServicer = (*mockMaintenanceService)(nil)

func setupMaintenanceRouter(handler *MaintenanceHandler) *gin.Engine {
	r := gin.New()
	r.POST("/internal/users/:id/reindex", handler.RebuildIndex)
	return r
}

func TestMaintenanceHandler_RebuildIndex(t *testing.T) {
	t.Run("returns the number of entries written", func(t *testing.T) {
		svc := &mockMaintenanceService{
			rebuildIndexFn: func(userID string) (int, error) {
				if userID != testUserID {
					t.Errorf("expected %s, got %s", testUserID, userID)
				}
				return 7, nil
			},
		}
		r := setupMaintenanceRouter(NewMaintenanceHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/internal/users/"+testUserID+"/reindex", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["entries"] != float64(7) {
			t.Errorf("expected 7 entries, got %v", rec.Body.String())
		}
	})

	t.Run("returns 404 for unknown users", func(t *testing.T) {
		svc := &mockMaintenanceService{
			rebuildIndexFn: func(_ string) (int, error) {
				return 0, apperrors.ErrUserNotFound
			},
		}
		r := setupMaintenanceRouter(NewMaintenanceHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/internal/users/"+testUserID+"/reindex", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupMaintenanceRouter(NewMaintenanceHandler(&mockMaintenanceService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/internal/users/nope/reindex", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
