package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/hiveboard/taskboard-backend/internal/adapters/primary/http/middleware"
	"github.com/hiveboard/taskboard-backend/internal/adapters/primary/validation"
	"github.com/hiveboard/taskboard-backend/internal/auth"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// ProjectHandler handles HTTP requests for projects
type ProjectHandler struct {
	projectService ports.ProjectService
	groupHandler   *GroupHandler
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(
	projectService ports.ProjectService,
	groupHandler *GroupHandler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		groupHandler:   groupHandler,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "project"),
	}
}

// Router sets up a new chi Router for all project-related routes.
func (h *ProjectHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all project endpoints.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreateProject)

	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.HandleGetProject)
		r.Patch("/", h.HandleRenameProject)
		r.Delete("/", h.HandleDeleteProject)

		// Full room state, fetched by clients on (re)join.
		r.Get("/board", h.HandleGetBoardState)

		// Mount the group routes nested under /projects/{projectID}
		if h.groupHandler != nil {
			r.Mount("/groups", h.groupHandler.Router())
		}
	})
}

// --- Request/Response DTOs ---

// CreateProjectRequest defines the expected JSON body for creating a project
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// Validate validates the create project request
func (r *CreateProjectRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("name", r.Name).
		MaxLength("name", r.Name, 255)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RenameProjectRequest defines the expected JSON body for renaming a project
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// Validate validates the rename project request
func (r *RenameProjectRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("name", r.Name).
		MaxLength("name", r.Name, 255)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// --- Handlers ---

// HandleCreateProject handles POST /projects
func (h *ProjectHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateProjectRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	project, err := h.projectService.CreateProject(r.Context(), ports.CreateProjectParams{
		Name:    req.Name,
		OwnerID: claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("project created",
		"project_id", project.ID,
		"user_id", claims.UserID,
	)

	WriteCreated(w, domain.NewProjectSnapshot(project))
}

// HandleGetProject handles GET /projects/{projectID}
func (h *ProjectHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	project, err := h.projectService.GetProject(r.Context(), projectID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, domain.NewProjectSnapshot(project))
}

// HandleRenameProject handles PATCH /projects/{projectID}
func (h *ProjectHandler) HandleRenameProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[RenameProjectRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	project, err := h.projectService.RenameProject(r.Context(), ports.RenameProjectParams{
		ProjectID: projectID,
		Name:      req.Name,
		ActorID:   claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("project renamed",
		"project_id", projectID,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, domain.NewProjectSnapshot(project))
}

// HandleDeleteProject handles DELETE /projects/{projectID}
func (h *ProjectHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.projectService.DeleteProject(r.Context(), projectID, claims.UserID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("project deleted",
		"project_id", projectID,
		"user_id", claims.UserID,
	)

	WriteNoContent(w)
}

// HandleGetBoardState handles GET /projects/{projectID}/board
func (h *ProjectHandler) HandleGetBoardState(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	state, err := h.projectService.GetBoardState(r.Context(), projectID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, state)
}

// --- Helper methods ---

// getClaims extracts and validates user claims from the request context
func (h *ProjectHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}

// parseProjectID extracts and validates the project ID from the URL
func (h *ProjectHandler) parseProjectID(r *http.Request) (uuid.UUID, error) {
	projectIDStr := chi.URLParam(r, "projectID")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("projectID", false, "Invalid project ID")
		return uuid.Nil, v.Errors()
	}
	return projectID, nil
}
