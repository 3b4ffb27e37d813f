package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"ecowaste-service/internal/handler"
	"ecowaste-service/internal/middleware"
	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/config"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/jwtutil"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestApp wires the full route table against a throwaway in-memory
// database. Each test gets a fresh schema.
func newTestApp(t *testing.T) *echo.Echo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	database.SetDB(db)
	t.Cleanup(func() { database.SetDB(nil) })

	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:      "test-secret",
		ExpirationHours: 1,
	})

	e := echo.New()

	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout, middleware.AuthMiddleware)
	auth.GET("/me", handler.GetProfile, middleware.AuthMiddleware)

	e.GET("/api/regions", handler.ListRegions)
	e.GET("/api/companies", handler.ListCompanies)

	api := e.Group("/api")

	users := api.Group("/users", middleware.AuthMiddleware)
	users.POST("/change-password", handler.ChangePassword)

	companies := api.Group("/companies", middleware.AuthMiddleware)
	companies.GET("/profile", handler.GetCompanyProfile)
	companies.PUT("/profile", handler.UpdateCompanyProfile)

	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.RequireAdmin)
	admin.GET("/regions", handler.ListRegions)
	admin.POST("/regions", handler.CreateRegion)
	admin.PUT("/regions/:id", handler.UpdateRegion)
	admin.DELETE("/regions/:id", handler.DeleteRegion)
	admin.GET("/companies", handler.ListAllCompanies)
	admin.GET("/companies/export", handler.ExportCompanies)
	admin.PUT("/companies/:id", handler.UpdateCompany)
	admin.DELETE("/companies/:id", handler.DeleteCompany)
	admin.POST("/companies/:id/approve", handler.ApproveCompany)
	admin.POST("/companies/:id/reset-password", handler.ResetPassword)
	admin.GET("/stats", handler.GetStats)

	return e
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// createRegion inserts a region directly.
func createRegion(t *testing.T, name string) model.Region {
	t.Helper()
	region := model.Region{Name: name}
	require.NoError(t, database.GetDB().Create(&region).Error)
	return region
}

// createUser inserts a user with a bcrypt-hashed password.
func createUser(t *testing.T, email, password string, role model.Role) model.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{
		Email:    email,
		Password: string(hashed),
		Role:     role,
	}
	require.NoError(t, database.GetDB().Create(&user).Error)
	return user
}

// createCompany inserts a company with its owning user and region links.
func createCompany(t *testing.T, name, email string, regions []model.Region) (model.User, model.Company) {
	t.Helper()
	user := createUser(t, email, "companypass", model.RoleCompany)
	company := model.Company{
		UserID:      user.ID,
		Name:        name,
		Phone:       "0700000000",
		Email:       email,
		Description: "Waste collection",
		Regions:     regions,
	}
	require.NoError(t, database.GetDB().Create(&company).Error)
	return user, company
}

// tokenFor issues a valid token for the given user.
func tokenFor(t *testing.T, user model.User) string {
	t.Helper()
	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	require.NoError(t, err)
	return token
}

// expiredTokenFor issues an already-expired token for the given user.
func expiredTokenFor(t *testing.T, user model.User) string {
	t.Helper()
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: -1})
	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	require.NoError(t, err)
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 1})
	return token
}

func countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, database.GetDB().Model(model).Count(&count).Error)
	return count
}
