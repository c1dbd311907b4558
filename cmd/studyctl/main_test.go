package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/dbtest"
)

func TestMakeAdmin(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	users := &auth.Users{DB: dbx}
	uid := dbtest.User(t, dbx, "salah", "")

	var out bytes.Buffer
	require.NoError(t, makeAdmin(ctx, &out, users, "salah@example.com"))
	assert.Contains(t, out.String(), "salah (salah@example.com) promoted to admin")

	u, err := users.ByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)

	out.Reset()
	require.NoError(t, makeAdmin(ctx, &out, users, "salah"))
	assert.Contains(t, out.String(), "already an admin")

	err = makeAdmin(ctx, &out, users, "ghost")
	assert.EqualError(t, err, "user not found with username/email: ghost")
}

func TestListUsers(t *testing.T) {
	dbx := dbtest.New(t)
	dbtest.User(t, dbx, "root", auth.RoleAdmin)
	dbtest.User(t, dbx, "ana", "")

	var out bytes.Buffer
	require.NoError(t, listUsers(context.Background(), &out, &auth.Users{DB: dbx}))
	assert.Equal(t,
		"1. 👑 root (root@example.com) - admin\n2. 👤 ana (ana@example.com) - user\n",
		out.String())
}

func TestResolveRoster(t *testing.T) {
	r, err := resolveRoster("", "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-pro"}, r.Names())

	var out bytes.Buffer
	require.NoError(t, printRoster(&out, r, false))
	assert.Contains(t, out.String(), "1. * gemini-1.5-flash (stable)\n")
	assert.Contains(t, out.String(), "2.   gemini-2.5-flash (5 RPM)\n")

	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - name: a\n  - name: a\n"), 0o644))
	_, err = resolveRoster(path, "")
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ErrorContains(t, err, path)
}
