package admin

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/dbtest"
)

func call(t *testing.T, h http.HandlerFunc, caller, target int, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPut, "/", &buf)
	req.SetPathValue("id", strconv.Itoa(target))
	req = req.WithContext(auth.WithClaims(req.Context(), auth.Claims{UserID: caller, Role: auth.RoleAdmin}))

	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func role(t *testing.T, dbx *sql.DB, id int) string {
	t.Helper()
	var r string
	require.NoError(t, dbx.QueryRow(`SELECT role FROM users WHERE id=$1`, id).Scan(&r))
	return r
}

func TestUsage(t *testing.T) {
	dbx := dbtest.New(t)
	ana := dbtest.User(t, dbx, "ana", "")
	ben := dbtest.User(t, dbx, "ben", "")
	dbtest.User(t, dbx, "idle", "")

	now := time.Now().UTC()
	for _, s := range []struct {
		uid, minutes int
	}{{ana, 30}, {ana, 45}, {ben, 20}} {
		_, err := dbx.Exec(`INSERT INTO study_sessions (user_id, subject, duration_minutes, occurred_at) VALUES ($1, $2, $3, $4)`,
			s.uid, "Math", s.minutes, now)
		require.NoError(t, err)
	}

	sum, err := Usage(context.Background(), dbx, now)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalUsers)
	assert.Equal(t, 95, sum.TotalMinutes)
	assert.Equal(t, 3, sum.TotalSessions)
	assert.Equal(t, []UserUsage{
		{UserID: ana, Username: "ana", TotalMinutes: 75, TotalSessions: 2},
		{UserID: ben, Username: "ben", TotalMinutes: 20, TotalSessions: 1},
	}, sum.PerUser)
	assert.Empty(t, sum.Events)
}

func TestUsage_Empty(t *testing.T) {
	sum, err := Usage(context.Background(), dbtest.New(t), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalUsers)
	assert.NotNil(t, sum.PerUser)
	assert.Empty(t, sum.PerUser)
}

func TestUsersHandler_HidesPasswords(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	dbtest.User(t, dbx, "ana", "")
	users := &auth.Users{DB: dbx}

	rec := call(t, UsersHandler(users), root, 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = call(t, AdminsHandler(users), root, 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var admins struct {
		Admins []map[string]any `json:"admins"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admins))
	assert.Equal(t, 1, admins.Count)
	assert.Equal(t, "root", admins.Admins[0]["username"])
}

func TestDeleteUserHandler(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	other := dbtest.User(t, dbx, "other", auth.RoleAdmin)
	ana := dbtest.User(t, dbx, "ana", "")
	users := &auth.Users{DB: dbx}
	h := DeleteUserHandler(users)

	_, err := dbx.Exec(`INSERT INTO tasks (user_id, title, created_at) VALUES ($1, $2, $3)`, ana, "t", time.Now().UTC())
	require.NoError(t, err)

	rec := call(t, h, root, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot delete admin users. Use demote-admin endpoint instead.", message(t, rec))

	rec = call(t, h, root, 999, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", message(t, rec))

	rec = call(t, h, root, ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"User removed successfully"}`, rec.Body.String())

	_, err = users.ByID(context.Background(), ana)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	var n int
	require.NoError(t, dbx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE user_id=$1`, ana).Scan(&n))
	assert.Zero(t, n)
}

func TestPromoteAndDemote(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	ana := dbtest.User(t, dbx, "ana", "")
	users := &auth.Users{DB: dbx}

	rec := call(t, PromoteHandler(users, ""), root, ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"message": "ana promoted to admin",
		"user": {"username": "ana", "email": "ana@example.com", "role": "admin"}
	}`, rec.Body.String())
	assert.Equal(t, auth.RoleAdmin, role(t, dbx, ana))

	rec = call(t, PromoteHandler(users, ""), root, ana, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User is already an admin", message(t, rec))

	rec = call(t, DemoteHandler(users, ""), root, ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana demoted to user", message(t, rec))
	assert.Equal(t, auth.RoleUser, role(t, dbx, ana))

	rec = call(t, DemoteHandler(users, ""), root, ana, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User is not an admin", message(t, rec))
}

func TestDemote_KeepsLastAdmin(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	users := &auth.Users{DB: dbx}

	rec := call(t, DemoteHandler(users, ""), root, root, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot demote the last admin. There must be at least one admin.", message(t, rec))
	assert.Equal(t, auth.RoleAdmin, role(t, dbx, root))
}

func TestRoleChange_SuperAdminOnly(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	deputy := dbtest.User(t, dbx, "deputy", auth.RoleAdmin)
	ana := dbtest.User(t, dbx, "ana", "")
	users := &auth.Users{DB: dbx}

	rec := call(t, PromoteHandler(users, "root"), deputy, ana, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only super admin can manage roles", message(t, rec))
	assert.Equal(t, auth.RoleUser, role(t, dbx, ana))

	rec = call(t, DemoteHandler(users, "root"), deputy, root, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, PromoteHandler(users, "root"), root, ana, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordHandler(t *testing.T) {
	dbx := dbtest.New(t)
	root := dbtest.User(t, dbx, "root", auth.RoleAdmin)
	ana := dbtest.User(t, dbx, "ana", "")
	users := &auth.Users{DB: dbx}
	h := PasswordHandler(users)

	rec := call(t, h, root, ana, map[string]string{"newPassword": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at least 6 characters", message(t, rec))

	rec = call(t, h, root, 999, map[string]string{"newPassword": "long-enough"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, root, ana, map[string]string{"newPassword": "long-enough"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password updated successfully", message(t, rec))

	u, err := users.ByID(context.Background(), ana)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.Password, "long-enough"))
}
