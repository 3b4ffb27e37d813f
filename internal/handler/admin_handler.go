package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegionStat is one row of the companies-per-region dashboard aggregate.
type RegionStat struct {
	RegionName string `json:"regionName"`
	Count      int64  `json:"count"`
}

// CreateRegion adds a new region. Region names are unique.
func CreateRegion(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordRegionOperation("create")

	var req struct {
		Name string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse region request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region name is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	var existing model.Region
	if result := database.GetDB().Where("name = ?", req.Name).First(&existing); result.Error == nil {
		log.Warn("Region already exists", zap.String("name", req.Name))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region already exists"})
	}

	region := model.Region{Name: req.Name}
	if result := database.GetDB().Create(&region); result.Error != nil {
		// Concurrent creations race on the uniqueness constraint; the loser
		// gets the same conflict answer as a sequential duplicate.
		log.Warn("Failed to create region", zap.String("name", req.Name), zap.Error(result.Error))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region already exists"})
	}

	log.Info("Region created", zap.Uint("region_id", region.ID), zap.String("name", region.Name))
	return c.JSON(http.StatusCreated, region)
}

// UpdateRegion renames a region. The new name must not collide with a
// different region.
func UpdateRegion(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordRegionOperation("update")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid region ID"})
	}

	var region model.Region
	if result := database.GetDB().First(&region, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Region not found"})
	}

	var req struct {
		Name string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse region request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region name is required"})
	}

	var collision model.Region
	if result := database.GetDB().Where("name = ? AND id <> ?", req.Name, region.ID).First(&collision); result.Error == nil {
		log.Warn("Region name collision", zap.String("name", req.Name), zap.Uint("other_id", collision.ID))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region already exists"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	region.Name = req.Name
	if result := database.GetDB().Save(&region); result.Error != nil {
		// A concurrent rename can still lose the race on the uniqueness
		// constraint; anything else is a plain database failure.
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			log.Warn("Region name collision", zap.String("name", req.Name))
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region already exists"})
		}
		log.Error("Failed to update region", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Update failed"})
	}

	log.Info("Region updated", zap.Uint("region_id", region.ID), zap.String("name", region.Name))
	return c.JSON(http.StatusOK, region)
}

// DeleteRegion removes a region. Deletion is refused while any company
// still references the region.
func DeleteRegion(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordRegionOperation("delete")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid region ID"})
	}

	var region model.Region
	if result := database.GetDB().First(&region, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Region not found"})
	}

	var refs int64
	if result := database.GetDB().Table("company_region").Where("region_id = ?", region.ID).Count(&refs); result.Error != nil {
		log.Error("Failed to count region references", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}
	if refs > 0 {
		log.Warn("Region still referenced by companies",
			zap.Uint("region_id", region.ID),
			zap.Int64("companies", refs))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Region is still referenced by companies"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&region); result.Error != nil {
		log.Error("Failed to delete region", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	log.Info("Region deleted", zap.Uint("region_id", region.ID), zap.String("name", region.Name))
	return c.JSON(http.StatusOK, echo.Map{"message": "Region deleted"})
}

// ListAllCompanies returns every company with its regions.
func ListAllCompanies(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("admin_list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var companies []model.Company
	if result := database.GetDB().Preload("Regions").Order("id").Find(&companies); result.Error != nil {
		log.Error("Failed to query companies", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to list companies"})
	}

	return c.JSON(http.StatusOK, companies)
}

// UpdateCompany applies a partial update to any company. Same semantics as
// the self-service profile update; the owner and role stay untouched.
func UpdateCompany(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("admin_update")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid company ID"})
	}

	var company model.Company
	if result := database.GetDB().First(&company, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company not found"})
	}

	var req CompanyUpdateRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse company update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	return applyCompanyUpdate(c, &company, &req)
}

// ApproveCompany marks a company as approved. Re-approving an already
// approved company is a no-op success.
func ApproveCompany(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("approve")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid company ID"})
	}

	var company model.Company
	if result := database.GetDB().Preload("Regions").First(&company, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company not found"})
	}

	if !company.Approved {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if result := database.GetDB().Model(&company).Update("approved", true); result.Error != nil {
			log.Error("Failed to approve company", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Approval failed"})
		}
		company.Approved = true
	}

	log.Info("Company approved", zap.Uint("company_id", company.ID), zap.String("name", company.Name))
	return c.JSON(http.StatusOK, company)
}

// DeleteCompany removes a company together with its service requests,
// region links and owning user account, in that order, inside one
// transaction. Nothing is left behind on failure.
func DeleteCompany(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("delete")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid company ID"})
	}

	var company model.Company
	if result := database.GetDB().First(&company, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	if result := tx.Where("company_id = ?", company.ID).Delete(&model.ServiceRequest{}); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to delete service requests", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	if err := tx.Model(&company).Association("Regions").Clear(); err != nil {
		tx.Rollback()
		log.Error("Failed to clear region links", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	// Company before user: the company row still holds the user foreign key
	if result := tx.Delete(&company); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to delete company", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	if result := tx.Delete(&model.User{}, company.UserID); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to delete owning user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit company delete", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Delete failed"})
	}

	log.Info("Company deleted",
		zap.Uint("company_id", company.ID),
		zap.String("name", company.Name),
		zap.Uint("user_id", company.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Company deleted"})
}

// ResetPassword assigns a fresh random temporary password to the owning
// user of a company and forces a change on next login. The plaintext is
// returned exactly once.
func ResetPassword(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("reset_password")

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid company ID"})
	}

	var company model.Company
	if result := database.GetDB().First(&company, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Company not found"})
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		log.Error("Failed to generate temporary password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Password reset failed"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash temporary password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Password reset failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{
		"password":             string(hashedPassword),
		"must_change_password": true,
	}
	if result := database.GetDB().Model(&model.User{}).Where("id = ?", company.UserID).Updates(updates); result.Error != nil {
		log.Error("Failed to reset password", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Password reset failed"})
	}

	log.Info("Password reset", zap.Uint("company_id", company.ID), zap.Uint("user_id", company.UserID))
	return c.JSON(http.StatusOK, echo.Map{
		"message":            "Password reset",
		"temporary_password": tempPassword,
	})
}

// GetStats returns the admin dashboard aggregates. Regions without
// companies appear with a zero count.
func GetStats(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCompanyOperation("stats")

	defer prometheus.TrackDBOperation("query")(time.Now())
	db := database.GetDB()

	var totalCompanies, totalRegions int64
	if result := db.Model(&model.Company{}).Count(&totalCompanies); result.Error != nil {
		log.Error("Failed to count companies", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to compute stats"})
	}
	if result := db.Model(&model.Region{}).Count(&totalRegions); result.Error != nil {
		log.Error("Failed to count regions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to compute stats"})
	}

	var perRegion []RegionStat
	result := db.Model(&model.Region{}).
		Select("regions.name AS region_name, COUNT(company_region.company_id) AS count").
		Joins("LEFT JOIN company_region ON company_region.region_id = regions.id").
		Group("regions.id, regions.name").
		Order("regions.id").
		Scan(&perRegion)
	if result.Error != nil {
		log.Error("Failed to aggregate companies per region", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to compute stats"})
	}

	for _, stat := range perRegion {
		prometheus.SetCompaniesPerRegion(stat.RegionName, stat.Count)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"totalCompanies":     totalCompanies,
		"totalRegions":       totalRegions,
		"companiesPerRegion": perRegion,
	})
}

// generateTempPassword produces a random url-safe temporary password.
func generateTempPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// joinRegionNames renders a company's region set for the export sheet.
func joinRegionNames(regions []model.Region) string {
	names := make([]string, 0, len(regions))
	for _, region := range regions {
		names = append(names, region.Name)
	}
	return strings.Join(names, ", ")
}
