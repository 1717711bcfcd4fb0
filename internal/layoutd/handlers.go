package layoutd

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"

	"liner-layout/internal/panel"
	"liner-layout/internal/remote"
	"liner-layout/pkg/geometry"
)

// ============================================================
// Layout Handler
// ============================================================

type Handler struct {
	repo     *Repository
	sessions *SessionManager
}

func NewHandler(repo *Repository, sessions *SessionManager) *Handler {
	return &Handler{repo: repo, sessions: sessions}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login issues a session token for a login/password pair.
func (h *Handler) Login(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	var req loginRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if req.Login == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "login and password required"})
	}

	userID, err := h.repo.UserByCredentials(context.Background(), req.Login, req.Password)
	if err != nil {
		log.Printf("[LAYOUTD] login %s: %v", req.Login, err)
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	return c.JSON(fiber.Map{"token": h.sessions.Issue(userID)})
}

// RequireAuth rejects requests without a live bearer token.
func (h *Handler) RequireAuth(c fiber.Ctx) error {
	auth := c.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	userID, ok := h.sessions.Resolve(strings.TrimPrefix(auth, "Bearer "))
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals("user", userID)
	return c.Next()
}

// Layout returns every panel of a project.
func (h *Handler) Layout(c fiber.Ctx) error {
	panels, err := h.repo.Layout(context.Background(), c.Params("project"))
	if err != nil {
		log.Printf("[LAYOUTD] layout: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load layout"})
	}
	return c.JSON(fiber.Map{"panels": panels})
}

// CreatePanel stores a new panel and returns it with its server id.
func (h *Handler) CreatePanel(c fiber.Ctx) error {
	var d remote.PanelDTO
	if err := json.Unmarshal(c.Body(), &d); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	d.ID = "new"
	p, err := remote.Normalize(d)
	if err == nil {
		err = panel.Validate(p)
	}
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	created, err := h.repo.Create(context.Background(), c.Params("project"), remote.FromPanel(p))
	if err != nil {
		log.Printf("[LAYOUTD] create: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create panel"})
	}
	return c.Status(http.StatusCreated).JSON(created)
}

// MovePanel updates a panel's position and rotation.
func (h *Handler) MovePanel(c fiber.Ctx) error {
	var m remote.MoveRequest
	if err := json.Unmarshal(c.Body(), &m); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if !geometry.IsFinite(m.X) || !geometry.IsFinite(m.Y) || !geometry.IsFinite(m.RotationDeg) ||
		math.Abs(m.X) > panel.MaxCoord || math.Abs(m.Y) > panel.MaxCoord {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "position out of range"})
	}
	m.RotationDeg = panel.NormalizeRotation(m.RotationDeg)

	d, err := h.repo.Move(context.Background(), c.Params("project"), c.Params("id"), m)
	if errors.Is(err, ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "panel not found"})
	}
	if err != nil {
		log.Printf("[LAYOUTD] move: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to move panel"})
	}
	return c.JSON(d)
}

// DeletePanel removes a panel.
func (h *Handler) DeletePanel(c fiber.Ctx) error {
	err := h.repo.Delete(context.Background(), c.Params("project"), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "panel not found"})
	}
	if err != nil {
		log.Printf("[LAYOUTD] delete: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete panel"})
	}
	return c.SendStatus(http.StatusNoContent)
}
