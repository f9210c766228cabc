/*
handlers.go - HTTP API handlers for the PeruGo plan service

PURPOSE:
  A reference implementation of the REST surface the reservation client
  talks to. It is used for development (cmd/server) and as the
  counterpart of the client's integration tests.

ENDPOINTS:
  Auth:
    POST   /auth/register        Create account, returns {token, user}
    POST   /auth/login           Returns {token, user}
    PATCH  /auth/profile         Rename, returns {user}          (token)

  Plans (all require a token, scoped to its user):
    GET    /api/planes           List, in creation order
    POST   /api/planes           Create; the server assigns the id
    PUT    /api/planes/{id}      Partial update; null clears dates
    DELETE /api/planes/{id}      Remove

  Catalog:
    GET    /api/destinos         Destinations with tours and expenses

  Health:
    GET    /healthz

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Repo: Users and plans (store.Memory or store/sqlite)
  - Catalog: Embedded destinations
  - Tokens: Session token issue/verify

REQUEST FLOW:
  1. Parse HTTP request (wire codecs, lenient like the client)
  2. Validate input
  3. Apply to the stored plan and normalize it
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON {"error": "..."} with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token or bad credentials
  - 404: Plan not found (including another user's plan)
  - 409: Email already registered
  - 500: Internal errors

CONFLICTS:
  Updates are applied in arrival order (last write wins). There are no
  version stamps.

SEE ALSO:
  - dto.go: Catalog and error bodies
  - auth.go: Tokens and middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/store"
	"github.com/perugo/reservation-engine/wire"
)

const (
	// MinPasswordLength is enforced on registration.
	MinPasswordLength = 6

	// MaxUsernameLength is enforced on registration and rename.
	MaxUsernameLength = 40

	maxBodyBytes = 1 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo    store.Repository
	Catalog *catalog.Catalog
	Tokens  *Tokens
	Logger  *slog.Logger

	// BcryptCost defaults to bcrypt.DefaultCost. Tests lower it.
	BcryptCost int
}

// NewHandler creates a new handler with the given repository.
func NewHandler(repo store.Repository, cat *catalog.Catalog, tokens *Tokens) *Handler {
	return &Handler{Repo: repo, Catalog: cat, Tokens: tokens, BcryptCost: bcrypt.DefaultCost}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates an account and signs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	email := store.NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "Correo electrónico inválido", nil)
		return
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, "La contraseña debe tener al menos 6 caracteres", nil)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		writeError(w, http.StatusBadRequest, "El nombre de usuario es demasiado largo", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo registrar el usuario", err)
		return
	}

	u := store.User{ID: uuid.NewString(), Email: email, Username: username, PasswordHash: hash}
	if err := h.Repo.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "El correo ya está registrado", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "No se pudo registrar el usuario", err)
		return
	}

	h.logger().Info("user registered", "user_id", u.ID)
	h.writeSession(w, http.StatusCreated, u)
}

// Login checks credentials and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Correo y contraseña son obligatorios", nil)
		return
	}

	u, err := h.Repo.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error al iniciar sesión", err)
		return
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas", nil)
		return
	}

	h.writeSession(w, http.StatusOK, u)
}

// UpdateProfile renames the signed-in user.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var req wire.ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "El nombre de usuario es obligatorio", nil)
		return
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		writeError(w, http.StatusBadRequest, "El nombre de usuario es demasiado largo", nil)
		return
	}

	u, err := h.Repo.UpdateUsername(r.Context(), userID, username)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "Usuario no encontrado", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo actualizar el nombre", err)
		return
	}

	writeJSON(w, http.StatusOK, wire.ProfileResponse{User: userRecord(u)})
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, u store.User) {
	token, err := h.Tokens.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo crear la sesión", err)
		return
	}
	writeJSON(w, status, wire.AuthResponse{Token: token, User: userRecord(u)})
}

func userRecord(u store.User) *wire.UserRecord {
	return &wire.UserRecord{ID: wire.ID(u.ID), Email: u.Email, Username: u.Username}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns the user's plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	plans, err := h.Repo.ListPlans(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudieron cargar los planes", err)
		return
	}

	records := make([]wire.PlanRecord, len(plans))
	for i, p := range plans {
		records[i] = wire.FromPlan(p)
	}
	writeJSON(w, http.StatusOK, records)
}

// CreatePlan stores a new plan under a server-assigned id. A missing
// estado means borrador.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var rec wire.PlanRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	if strings.TrimSpace(rec.DestinationID) == "" {
		writeError(w, http.StatusBadRequest, "destino_id es obligatorio", nil)
		return
	}
	rec.ID = wire.ID(uuid.NewString())
	if strings.TrimSpace(rec.State) == "" {
		rec.State = wire.EncodeState(plan.StateDraft)
	}

	p, notes, err := rec.ToPlan()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Plan inválido", err)
		return
	}
	if err := plan.Validate(p); err != nil {
		writeError(w, http.StatusBadRequest, "Plan inválido", err)
		return
	}
	if err := h.Repo.SavePlan(r.Context(), userID, p); err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo crear el plan", err)
		return
	}

	h.logger().Info("plan created", "user_id", userID, "plan_id", p.ID, "destination", p.DestinationID, "notes", notes)
	writeJSON(w, http.StatusCreated, wire.FromPlan(p))
}

// UpdatePlan applies a partial update. Fields not present are kept.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	id := plan.ID(chi.URLParam(r, "id"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
		return
	}
	changes, err := wire.DecodePatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cambios inválidos", err)
		return
	}

	current, err := h.Repo.GetPlan(r.Context(), userID, id)
	if plan.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Plan no encontrado", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo actualizar el plan", err)
		return
	}

	// The client derives the end date; Normalize takes its span as the duration.
	next, _ := plan.Normalize(current.Apply(changes))
	if err := plan.Validate(next); err != nil {
		writeError(w, http.StatusBadRequest, "Cambios inválidos", err)
		return
	}
	if err := h.Repo.SavePlan(r.Context(), userID, next); err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo actualizar el plan", err)
		return
	}

	h.logger().Debug("plan updated", "user_id", userID, "plan_id", id, "estado", next.State)
	writeJSON(w, http.StatusOK, wire.FromPlan(next))
}

// DeletePlan removes a plan.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	id := plan.ID(chi.URLParam(r, "id"))

	err := h.Repo.DeletePlan(r.Context(), userID, id)
	if plan.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Plan no encontrado", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo eliminar el plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CATALOG / HEALTH
// =============================================================================

// ListDestinations returns the embedded catalog.
func (h *Handler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	all := h.Catalog.All()
	dtos := make([]DestinationDTO, len(all))
	for i, d := range all {
		dtos[i] = toDestinationDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handler) bcryptCost() int {
	if h.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return h.BcryptCost
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default().With("component", "api")
	}
	return h.Logger.With("component", "api")
}
