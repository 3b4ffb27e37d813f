package handler

import (
	"net/http"
	"time"

	"ecowaste-service/internal/middleware"
	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/jwtutil"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register handles company self-registration: the user account and its
// company profile are created together in one transaction, and a token is
// issued immediately so the client can proceed without a separate login.
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		CompanyName string `json:"company_name"`
		Phone       string `json:"phone"`
		Description string `json:"description"`
		Regions     []uint `json:"regions"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.Email == "" || req.Password == "" || req.CompanyName == "" || req.Phone == "" || req.Description == "" {
		log.Warn("Incomplete registration data", zap.String("email", req.Email))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email, password, company name, phone and description are required"})
	}

	// Check if user already exists - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&existingUser); result.Error == nil {
		log.Warn("Email already registered", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email already registered"})
	}

	// Every requested region must exist; unknown IDs fail the whole request
	regions, err := resolveRegions(req.Regions)
	if err != nil {
		log.Warn("Registration referenced unknown region", zap.Uints("regions", req.Regions))
		prometheus.RecordAuthError("unknown_region")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Unknown region in request"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     model.RoleCompany,
	}

	company := model.Company{
		Name:        req.CompanyName,
		Phone:       req.Phone,
		Email:       req.Email,
		Description: req.Description,
		Regions:     regions,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	if result := tx.Create(&user); result.Error != nil {
		tx.Rollback()
		// A concurrent registration can still lose the race on the email
		// uniqueness constraint; the loser fails cleanly.
		log.Warn("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email already registered"})
	}

	company.UserID = user.ID
	if result := tx.Create(&company); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create company", zap.Error(result.Error))
		prometheus.RecordAuthError("company_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit registration", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Registration failed"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Token error"})
	}
	prometheus.IncreaseActiveTokens()

	log.Info("Company registered",
		zap.String("email", user.Email),
		zap.String("company", company.Name),
		zap.Uint("user_id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable from the outside.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("Login failed", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid email or password"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Login failed", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid email or password"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Token error"})
	}
	prometheus.IncreaseActiveTokens()

	log.Info("User logged in", zap.String("email", user.Email), zap.Uint("user_id", user.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":                   user.ID,
			"email":                user.Email,
			"role":                 user.Role,
			"must_change_password": user.MustChangePassword,
		},
	})
}

// Logout acknowledges the client-side token discard. Issued tokens are
// stateless and stay valid until expiry, so there is nothing to revoke.
func Logout(c echo.Context) error {
	log := logger.FromContext(c)

	prometheus.DecreaseActiveTokens()
	if user, ok := middleware.CurrentUser(c); ok {
		log.Info("User logged out", zap.Uint("user_id", user.ID))
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

// GetProfile returns the authenticated user, embedding the company profile
// for company accounts.
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
	}

	response := map[string]interface{}{
		"id":                   user.ID,
		"email":                user.Email,
		"role":                 user.Role,
		"must_change_password": user.MustChangePassword,
	}

	if user.Role == model.RoleCompany {
		defer prometheus.TrackDBOperation("query")(time.Now())
		var company model.Company
		if result := database.GetDB().Preload("Regions").Where("user_id = ?", user.ID).First(&company); result.Error == nil {
			response["company"] = company
		}
	}

	log.Debug("Profile fetched", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"user": response})
}

// ChangePassword verifies the current password and replaces it. Clears the
// forced-change flag set by an admin password reset.
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse change-password request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	if req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "New password is required"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		log.Warn("Password change with wrong current password", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Current password is incorrect"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Password change failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{
		"password":             string(hashedPassword),
		"must_change_password": false,
	}
	if result := database.GetDB().Model(user).Updates(updates); result.Error != nil {
		log.Error("Failed to update password", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Password change failed"})
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated"})
}

// resolveRegions loads every requested region and fails if any ID does not
// exist. An empty request resolves to an empty set.
func resolveRegions(ids []uint) ([]model.Region, error) {
	if len(ids) == 0 {
		return []model.Region{}, nil
	}

	seen := make(map[uint]struct{}, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var regions []model.Region
	if result := database.GetDB().Where("id IN ?", unique).Find(&regions); result.Error != nil {
		return nil, result.Error
	}
	if len(regions) != len(unique) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown region")
	}
	return regions, nil
}
