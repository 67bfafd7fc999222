package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole("user")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	for _, raw := range []string{"", "Admin", "staff", "root"} {
		_, err := ParseRole(raw)
		assert.Error(t, err, raw)
		assert.False(t, Role(raw).Valid())
	}
}

func TestUserProfileOmitsPassword(t *testing.T) {
	now := time.Now()
	u := &User{ID: 7, Name: "Ana", Email: "ana@example.com", PasswordHash: "$2a$...", Role: RoleUser, CreatedAt: now}
	p := u.Profile()
	assert.Equal(t, UserProfile{ID: 7, Name: "Ana", Email: "ana@example.com", Role: RoleUser, CreatedAt: now}, p)
}
