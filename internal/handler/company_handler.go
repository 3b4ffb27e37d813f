package handler

import (
	"net/http"
	"strconv"
	"time"

	"ecowaste-service/internal/middleware"
	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CompanyUpdateRequest carries a partial company update. Nil fields keep
// their previous value; a non-nil RegionIDs fully replaces the region set.
// Approved is honored on the admin route only.
type CompanyUpdateRequest struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Description *string `json:"description"`
	Approved    *bool   `json:"approved"`
	RegionIDs   *[]uint `json:"region_ids"`
}

// ListCompanies returns all companies, optionally filtered by region.
// Public endpoint; an unknown region filter yields an empty list.
func ListCompanies(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("list")

	defer prometheus.TrackDBOperation("query")(time.Now())

	query := database.GetDB().Preload("Regions")

	if regionParam := c.QueryParam("region"); regionParam != "" {
		regionID, err := strconv.ParseUint(regionParam, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid region ID"})
		}

		var region model.Region
		if result := database.GetDB().First(&region, regionID); result.Error != nil {
			return c.JSON(http.StatusOK, []model.Company{})
		}

		query = query.
			Joins("JOIN company_region ON company_region.company_id = companies.id").
			Where("company_region.region_id = ?", regionID)
	}

	var companies []model.Company
	if result := query.Find(&companies); result.Error != nil {
		log.Error("Failed to query companies", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to list companies"})
	}

	return c.JSON(http.StatusOK, companies)
}

// GetCompanyProfile returns the authenticated user's own company profile.
func GetCompanyProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("profile_get")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
	}

	if user.Role != model.RoleCompany {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company profile not found"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var company model.Company
	if result := database.GetDB().Preload("Regions").Where("user_id = ?", user.ID).First(&company); result.Error != nil {
		log.Warn("Company profile not found", zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company profile not found"})
	}

	return c.JSON(http.StatusOK, company)
}

// UpdateCompanyProfile applies a partial update to the caller's own company.
func UpdateCompanyProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("profile_update")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
	}

	if user.Role != model.RoleCompany {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company profile not found"})
	}

	var company model.Company
	if result := database.GetDB().Where("user_id = ?", user.ID).First(&company); result.Error != nil {
		log.Warn("Company profile not found", zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company profile not found"})
	}

	var req CompanyUpdateRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse company update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	// Companies cannot approve themselves; only the admin route touches it
	req.Approved = nil

	return applyCompanyUpdate(c, &company, &req)
}

// applyCompanyUpdate writes the changed fields and, when requested,
// replaces the region membership, all inside one transaction. Shared by
// the profile route and the admin route.
func applyCompanyUpdate(c echo.Context, company *model.Company, req *CompanyUpdateRequest) error {
	log := logger.FromContext(c)

	if req.Name != nil {
		company.Name = *req.Name
	}
	if req.Phone != nil {
		company.Phone = *req.Phone
	}
	if req.Email != nil {
		company.Email = *req.Email
	}
	if req.Description != nil {
		company.Description = *req.Description
	}

	fields := []string{"Name", "Phone", "Email", "Description"}
	if req.Approved != nil {
		company.Approved = *req.Approved
		fields = append(fields, "Approved")
	}

	var regions []model.Region
	if req.RegionIDs != nil {
		var err error
		regions, err = resolveRegions(*req.RegionIDs)
		if err != nil {
			log.Warn("Company update referenced unknown region", zap.Uints("regions", *req.RegionIDs))
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Unknown region in request"})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
	}

	if result := tx.Model(company).Select(fields).Updates(company); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to update company", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
	}

	if req.RegionIDs != nil {
		// Full replacement: the new set wins, an empty set clears all links
		assoc := tx.Model(company).Association("Regions")
		var err error
		if len(regions) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(regions)
		}
		if err != nil {
			tx.Rollback()
			log.Error("Failed to replace region links", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit company update", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
	}

	var updated model.Company
	if result := database.GetDB().Preload("Regions").First(&updated, company.ID); result.Error != nil {
		log.Error("Failed to reload company", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
	}

	log.Info("Company updated", zap.Uint("company_id", updated.ID), zap.String("name", updated.Name))
	return c.JSON(http.StatusOK, updated)
}
