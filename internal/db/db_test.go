package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kb-chat/internal/models"
)

func TestConnect_SQLite(t *testing.T) {
	gdb := Connect("sqlite:file:dbtest?mode=memory&cache=shared")

	u := models.User{Email: "a@b.c", Username: "abc", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	assert.NotZero(t, u.ID)

	dup := models.User{Email: "a@b.c", Username: "other", PasswordHash: "x"}
	assert.Error(t, gdb.Create(&dup).Error)
}
