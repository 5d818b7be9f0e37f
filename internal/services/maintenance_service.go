package services

import (
	"context"

	"pocketbook/internal/integrity"
	"pocketbook/internal/logger"
)

// maintenanceService runs operator repairs on the owning-set index.
type maintenanceService struct {
	engine *integrity.Engine
}

// NewMaintenanceService creates a new MaintenanceServicer.
func NewMaintenanceService(engine *integrity.Engine) MaintenanceServicer {
	return &maintenanceService{engine: engine}
}

// RebuildIndex recomputes every owning set of userID from the forward
// references of the user's records.
func (s *maintenanceService) RebuildIndex(ctx context.Context, userID string) (int, error) {
	written, err := s.engine.RebuildIndex(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.Get().Infow("Owning-set index rebuilt", "user_id", userID, "entries", written)
	return written, nil
}
