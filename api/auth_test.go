package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func testAuth(secret []byte) *Auth {
	return &Auth{
		Audience:   "api://aud",
		Issuer:     "https://issuer/",
		TestMode:   true,
		TestSecret: secret,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

func signedToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
}

func TestBearerTokenFromStringSuccess(t *testing.T) {
	token, err := bearerTokenFromString("  Bearer header.payload.signature  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(token) != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", string(token))
	}
}

func TestBearerTokenFromStringMissing(t *testing.T) {
	if _, err := bearerTokenFromString("   "); err != errMissingAuthorization {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestBearerTokenFromStringBadShapes(t *testing.T) {
	tests := []string{
		"Basic abc.def.ghi",
		"Bearer",
		"Bearer onlytwoparts.x",
		"Bearer " + strings.Repeat(".", 1000),
	}
	for _, header := range tests {
		if _, err := bearerTokenFromString(header); err != errBadAuthorization {
			t.Fatalf("header %q: expected bad auth header error, got %v", header, err)
		}
	}
}

func TestIdentityFromAuthHeaderHS256(t *testing.T) {
	secret := []byte("test-secret")
	claims := baseClaims()
	claims["email"] = "dana@example.com"
	header := "Bearer " + signedToken(t, secret, claims)

	ident, err := testAuth(secret).IdentityFromAuthHeader(header)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if ident.UserID != "user-123" {
		t.Fatalf("unexpected user id: %s", ident.UserID)
	}
	if ident.Email != "dana@example.com" {
		t.Fatalf("unexpected email: %s", ident.Email)
	}
}

func TestIdentityFromAuthHeaderNoEmailClaim(t *testing.T) {
	secret := []byte("test-secret")
	header := "Bearer " + signedToken(t, secret, baseClaims())

	ident, err := testAuth(secret).IdentityFromAuthHeader(header)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if ident.Email != "" {
		t.Fatalf("expected empty email, got %s", ident.Email)
	}
}

func TestIdentityFromAuthHeaderExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-10 * time.Minute).Unix()
	header := "Bearer " + signedToken(t, secret, claims)

	if _, err := testAuth(secret).IdentityFromAuthHeader(header); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestIdentityFromAuthHeaderWrongAudience(t *testing.T) {
	secret := []byte("test-secret")
	claims := baseClaims()
	claims["aud"] = "api://other"
	header := "Bearer " + signedToken(t, secret, claims)

	if _, err := testAuth(secret).IdentityFromAuthHeader(header); err == nil {
		t.Fatal("expected wrong audience to be rejected")
	}
}

func TestIdentityFromAuthHeaderWrongSecret(t *testing.T) {
	header := "Bearer " + signedToken(t, []byte("other-secret"), baseClaims())
	if _, err := testAuth([]byte("test-secret")).IdentityFromAuthHeader(header); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestIdentityFromAuthHeaderMissingSub(t *testing.T) {
	secret := []byte("test-secret")
	claims := baseClaims()
	delete(claims, "sub")
	header := "Bearer " + signedToken(t, secret, claims)

	if _, err := testAuth(secret).IdentityFromAuthHeader(header); err == nil {
		t.Fatal("expected missing sub to be rejected")
	}
}
