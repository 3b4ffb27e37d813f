package handler

import (
	"fmt"
	"net/http"
	"time"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// CompanyExportHeader lists the columns of the admin companies export.
var CompanyExportHeader = []string{
	"ID",
	"Name",
	"Email",
	"Phone",
	"Description",
	"Regions",
	"Approved",
	"Registered",
}

// ExportCompanies streams an XLSX workbook of every company, for the admin
// dashboard download.
func ExportCompanies(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("export")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var companies []model.Company
	if result := database.GetDB().Preload("Regions").Order("id").Find(&companies); result.Error != nil {
		log.Error("Failed to query companies for export", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Export failed"})
	}

	data, err := generateCompanyWorkbook(companies)
	if err != nil {
		log.Error("Failed to generate export workbook", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Export failed"})
	}

	log.Info("Companies exported", zap.Int("count", len(companies)))

	filename := fmt.Sprintf("companies-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func generateCompanyWorkbook(companies []model.Company) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Companies"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E2EFDA"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range CompanyExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for row, company := range companies {
		values := []interface{}{
			company.ID,
			company.Name,
			company.Email,
			company.Phone,
			company.Description,
			joinRegionNames(company.Regions),
			company.Approved,
			company.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
