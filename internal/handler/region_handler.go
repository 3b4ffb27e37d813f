package handler

import (
	"net/http"
	"time"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListRegions returns every region. Public endpoint.
func ListRegions(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordRegionOperation("list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var regions []model.Region
	if result := database.GetDB().Order("id").Find(&regions); result.Error != nil {
		log.Error("Failed to query regions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to list regions"})
	}

	return c.JSON(http.StatusOK, regions)
}
