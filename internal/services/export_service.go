package services

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/store"
)

// ExportSheetName is the name of the worksheet holding exported elements.
const ExportSheetName = "Budget"

var exportHeaders = []string{"Date", "Name", "Type", "Amount", "Wallet", "Category"}

// exportService renders budget elements as an XLSX workbook.
type exportService struct {
	store store.Reader
}

// NewExportService creates a new ExportServicer.
func NewExportService(r store.Reader) ExportServicer {
	return &exportService{store: r}
}

// ExportBudgetElements writes every element of userID matching filter to w,
// newest first, with wallet and category names resolved.
func (s *exportService) ExportBudgetElements(ctx context.Context, userID string, filter BudgetElementFilter, w io.Writer) error {
	f := filter.toStore(userID)
	f.OrderBy = budgetElementOrder
	recs, err := s.store.FindMany(ctx, models.KindBudgetElement, f)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	elements := store.Collect[*models.BudgetElement](recs)

	walletNames, err := s.names(ctx, models.KindWallet, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	categoryNames, err := s.names(ctx, models.KindCategory, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	xf := excelize.NewFile()
	defer xf.Close()

	if err := xf.SetSheetName(xf.GetSheetName(0), ExportSheetName); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := xf.SetCellValue(ExportSheetName, cell, h); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	for idx, e := range elements {
		row := idx + 2
		values := []any{
			e.Date.Format("2006-01-02"),
			e.Name,
			string(e.Type),
			e.Amount.InexactFloat64(),
			walletNames[e.WalletID],
			categoryNames[e.CategoryID],
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := xf.SetCellValue(ExportSheetName, cell, v); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
	}

	widths := map[string]float64{"A": 12, "B": 30, "C": 10, "D": 12, "E": 20, "F": 20}
	for col, width := range widths {
		if err := xf.SetColWidth(ExportSheetName, col, col, width); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if err := xf.Write(w); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("write workbook: %w", err))
	}
	return nil
}

func (s *exportService) names(ctx context.Context, kind models.Kind, userID string) (map[string]string, error) {
	recs, err := s.store.FindMany(ctx, kind, store.ByUser(userID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(recs))
	for _, rec := range recs {
		switch v := rec.(type) {
		case *models.Wallet:
			out[v.ID] = v.Name
		case *models.Category:
			out[v.ID] = v.Name
		}
	}
	return out, nil
}
