package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-unit-tests-only"

func TestValidateToken(t *testing.T) {
	svc := NewJWTService(testSecret, "clinic-idp")
	staffID := uuid.New()

	token, err := SignStaffToken(testSecret, "clinic-idp", staffID, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, staffID, claims.StaffID)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewJWTService(testSecret, "clinic-idp")
	staffID := uuid.New()

	expired, err := SignStaffToken(testSecret, "clinic-idp", staffID, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := SignStaffToken("another-secret", "clinic-idp", staffID, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := SignStaffToken(testSecret, "someone-else", staffID, time.Hour)
	require.NoError(t, err)
	noStaff, err := SignStaffToken(testSecret, "clinic-idp", uuid.Nil, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, StaffClaims{StaffID: staffID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no staff id":  noStaff,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
