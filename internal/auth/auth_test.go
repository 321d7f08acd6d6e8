package auth

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"fieldserve-backend/internal/engine"
	"fieldserve-backend/internal/metadata"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("u-1", []string{"manager", "dispatcher"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Errorf("subject = %s", claims.Subject)
	}
	if claims.Issuer != Issuer {
		t.Errorf("issuer = %s", claims.Issuer)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "manager" {
		t.Errorf("roles = %v", claims.Roles)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("u-1", nil, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken(token, "other-secret"); err == nil {
		t.Fatal("expected rejection for wrong secret")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := GenerateAccessToken("u-1", nil, testSecret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken(token, testSecret); err == nil {
		t.Fatal("expected rejection for expired token")
	}
}

func TestParseAccessTokenRejectsNonHMAC(t *testing.T) {
	// alg=none tokens must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u-1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken(signed, testSecret); err == nil {
		t.Fatal("expected rejection for alg=none token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func middlewareApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: engine.FiberErrorHandler})
	app.Get("/whoami", Middleware(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(GetUser(c))
	})
	app.Get("/admin", Middleware(testSecret), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(204)
	})
	return app
}

func TestMiddlewareSetsUserContext(t *testing.T) {
	app := middlewareApp()
	token, err := GenerateAccessToken("u-7", []string{"technician"}, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var user metadata.UserContext
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &user); err != nil {
		t.Fatal(err)
	}
	if user.ID != "u-7" || len(user.Roles) != 1 || user.Roles[0] != "technician" {
		t.Errorf("user = %+v", user)
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	app := middlewareApp()

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest("GET", "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if resp.StatusCode != 401 {
			t.Errorf("%s: status = %d, want 401", name, resp.StatusCode)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	app := middlewareApp()

	token, _ := GenerateAccessToken("u-1", []string{"manager"}, testSecret, time.Hour)
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("manager on admin route: status = %d, want 403", resp.StatusCode)
	}

	token, _ = GenerateAccessToken("u-2", []string{"admin"}, testSecret, time.Hour)
	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 204 {
		t.Errorf("admin: status = %d, want 204", resp.StatusCode)
	}
}
