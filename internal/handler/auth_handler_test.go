package handler_test

import (
	"net/http"
	"testing"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/jwtutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIssuesTokenForNewUser(t *testing.T) {
	e := newTestApp(t)
	nairobi := createRegion(t, "Nairobi")

	rec := doJSON(e, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"email":        "greencycle@example.com",
		"password":     "secret123",
		"company_name": "GreenCycle Ltd",
		"phone":        "0712345678",
		"description":  "Recycling services",
		"regions":      []uint{nairobi.ID},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)

	token, ok := body["token"].(string)
	require.True(t, ok)

	// The issued token must resolve straight back to the new user
	claims, err := jwtutil.ValidateToken(token)
	require.NoError(t, err)

	var user model.User
	require.NoError(t, database.GetDB().Where("email = ?", "greencycle@example.com").First(&user).Error)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleCompany, user.Role)

	var company model.Company
	require.NoError(t, database.GetDB().Preload("Regions").Where("user_id = ?", user.ID).First(&company).Error)
	assert.Equal(t, "GreenCycle Ltd", company.Name)
	assert.False(t, company.Approved)
	require.Len(t, company.Regions, 1)
	assert.Equal(t, "Nairobi", company.Regions[0].Name)
}

func TestRegisterDuplicateEmailLeavesNoPartialRows(t *testing.T) {
	e := newTestApp(t)

	payload := map[string]interface{}{
		"email":        "dup@example.com",
		"password":     "secret123",
		"company_name": "EcoCollect",
		"phone":        "0722123456",
		"description":  "Garbage collection",
	}

	rec := doJSON(e, http.MethodPost, "/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/auth/register", "", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.EqualValues(t, 1, countRows(t, &model.User{}))
	assert.EqualValues(t, 1, countRows(t, &model.Company{}))
}

func TestRegisterRejectsUnknownRegion(t *testing.T) {
	e := newTestApp(t)

	rec := doJSON(e, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"email":        "strict@example.com",
		"password":     "secret123",
		"company_name": "TrashAway",
		"phone":        "0700123456",
		"description":  "Waste disposal",
		"regions":      []uint{999},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, countRows(t, &model.User{}))
	assert.EqualValues(t, 0, countRows(t, &model.Company{}))
}

func TestRegisterMissingFields(t *testing.T) {
	e := newTestApp(t)

	rec := doJSON(e, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"email":    "incomplete@example.com",
		"password": "secret123",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailureIsUniform(t *testing.T) {
	e := newTestApp(t)
	createUser(t, "known@example.com", "rightpass", model.RoleCompany)

	wrongPassword := doJSON(e, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "known@example.com",
		"password": "wrongpass",
	})
	unknownEmail := doJSON(e, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "nobody@example.com",
		"password": "whatever",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// Wrong password and unknown email must be indistinguishable
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestLoginSuccess(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "login@example.com", "rightpass", model.RoleCompany)

	rec := doJSON(e, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "login@example.com",
		"password": "rightpass",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	claims, err := jwtutil.ValidateToken(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestGetProfileEmbedsCompany(t *testing.T) {
	e := newTestApp(t)
	region := createRegion(t, "Mombasa")
	user, _ := createCompany(t, "EcoCollect", "profile@example.com", []model.Region{region})

	rec := doJSON(e, http.MethodGet, "/auth/me", tokenFor(t, user), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	userBody := body["user"].(map[string]interface{})
	assert.Equal(t, "profile@example.com", userBody["email"])

	company := userBody["company"].(map[string]interface{})
	assert.Equal(t, "EcoCollect", company["name"])
}

func TestAuthRejectsTokenForDeletedUser(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "gone@example.com", "secret123", model.RoleCompany)
	token := tokenFor(t, user)

	require.NoError(t, database.GetDB().Delete(&model.User{}, user.ID).Error)

	rec := doJSON(e, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "expired@example.com", "secret123", model.RoleCompany)

	rec := doJSON(e, http.MethodGet, "/auth/me", expiredTokenFor(t, user), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	e := newTestApp(t)

	rec := doJSON(e, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordClearsForcedFlag(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "change@example.com", "oldpass", model.RoleCompany)
	require.NoError(t, database.GetDB().Model(&user).Update("must_change_password", true).Error)

	rec := doJSON(e, http.MethodPost, "/api/users/change-password", tokenFor(t, user), map[string]interface{}{
		"current_password": "oldpass",
		"new_password":     "newpass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated model.User
	require.NoError(t, database.GetDB().First(&updated, user.ID).Error)
	assert.False(t, updated.MustChangePassword)

	// Old password no longer works, new one does
	rec = doJSON(e, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "change@example.com",
		"password": "oldpass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "change@example.com",
		"password": "newpass",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "wrongcurrent@example.com", "oldpass", model.RoleCompany)

	rec := doJSON(e, http.MethodPost, "/api/users/change-password", tokenFor(t, user), map[string]interface{}{
		"current_password": "nope",
		"new_password":     "newpass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForcedPasswordChangeLocksAccountDown(t *testing.T) {
	e := newTestApp(t)
	user, company := createCompany(t, "Wasteline", "locked@example.com", nil)
	require.NoError(t, database.GetDB().Model(&model.User{}).Where("id = ?", user.ID).
		Update("must_change_password", true).Error)
	token := tokenFor(t, user)

	// Everything except change-password and logout is refused
	rec := doJSON(e, http.MethodPut, "/api/companies/profile", token, map[string]interface{}{
		"name": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var unchanged model.Company
	require.NoError(t, database.GetDB().First(&unchanged, company.ID).Error)
	assert.Equal(t, "Wasteline", unchanged.Name)

	rec = doJSON(e, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Replacing the password lifts the lock
	rec = doJSON(e, http.MethodPost, "/api/users/change-password", token, map[string]interface{}{
		"current_password": "companypass",
		"new_password":     "freshpass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPut, "/api/companies/profile", token, map[string]interface{}{
		"name": "Wasteline Kenya",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	e := newTestApp(t)
	user := createUser(t, "logout@example.com", "secret123", model.RoleCompany)

	rec := doJSON(e, http.MethodPost, "/auth/logout", tokenFor(t, user), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
