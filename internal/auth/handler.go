package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"fieldserve-backend/internal/engine"
	"fieldserve-backend/internal/store"
)

// Handler serves the authentication endpoints.
type Handler struct {
	store     *store.Store
	jwtSecret string
	tokenTTL  time.Duration
}

func NewHandler(s *store.Store, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidInputError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.InvalidInputError("Email and password are required")
	}

	user, err := h.findUserByEmail(c.Context(), body.Email)
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	if active, ok := user["active"].(bool); ok && !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	userID, _ := user["id"].(string)
	roles := rolesOf(user)

	token, err := GenerateAccessToken(userID, roles, h.jwtSecret, h.tokenTTL)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	delete(user, "password_hash")
	delete(user, "active")
	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokenTTL.Seconds()),
		"user":         user,
	})
}

// Me handles GET /api/auth/me; it runs behind the auth middleware.
func (h *Handler) Me(c *fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return engine.UnauthorizedError("")
	}
	return c.JSON(fiber.Map{"data": user})
}

// RegisterRoutes mounts the auth endpoints. Login is public; me requires the
// auth middleware.
func RegisterRoutes(app *fiber.App, h *Handler, authMW fiber.Handler) {
	grp := app.Group("/api/auth")
	grp.Post("/login", h.Login)
	grp.Get("/me", authMW, h.Me)
}

func (h *Handler) findUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	return store.QueryRow(ctx, h.store.DB,
		`SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, u.active, r.name AS role
		 FROM users u
		 JOIN roles r ON r.id = u.role_id
		 WHERE u.email = $1`, email)
}

func rolesOf(user map[string]any) []string {
	role, _ := user["role"].(string)
	if role == "" {
		return []string{}
	}
	return []string{role}
}
