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

// GroupHandler handles HTTP requests for task groups. Its routes are
// mounted under /projects/{projectID}/groups.
type GroupHandler struct {
	groupService ports.TaskGroupService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewGroupHandler creates a new task group handler
func NewGroupHandler(
	groupService ports.TaskGroupService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "group"),
	}
}

// Router sets up a new chi Router for all group-related routes.
func (h *GroupHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all group endpoints.
func (h *GroupHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListGroups)
	r.Post("/", h.HandleCreateGroup)

	r.Route("/{groupID}", func(r chi.Router) {
		r.Patch("/", h.HandleRenameGroup)
		r.Delete("/", h.HandleDeleteGroup)
	})
}

// --- Request/Response DTOs ---

// CreateGroupRequest defines the expected JSON body for creating a group
type CreateGroupRequest struct {
	Name     string `json:"name"`
	Position int32  `json:"position"`
}

// Validate validates the create group request
func (r *CreateGroupRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("name", r.Name).
		MaxLength("name", r.Name, 255)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RenameGroupRequest defines the expected JSON body for renaming a group
type RenameGroupRequest struct {
	Name string `json:"name"`
}

// Validate validates the rename group request
func (r *RenameGroupRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("name", r.Name).
		MaxLength("name", r.Name, 255)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

func toGroupSnapshots(groups []*domain.TaskGroup) []domain.GroupSnapshot {
	response := make([]domain.GroupSnapshot, 0, len(groups))
	for _, group := range groups {
		response = append(response, domain.NewGroupSnapshot(group))
	}
	return response
}

// --- Handlers ---

// HandleListGroups handles GET /projects/{projectID}/groups
func (h *GroupHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	groups, err := h.groupService.ListGroups(r.Context(), projectID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toGroupSnapshots(groups))
}

// HandleCreateGroup handles POST /projects/{projectID}/groups
func (h *GroupHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	projectID, err := h.parseProjectID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[CreateGroupRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), ports.CreateGroupParams{
		ProjectID: projectID,
		Name:      req.Name,
		Position:  req.Position,
		ActorID:   claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("group created",
		"group_id", group.ID,
		"project_id", projectID,
		"user_id", claims.UserID,
	)

	WriteCreated(w, domain.NewGroupSnapshot(group))
}

// HandleRenameGroup handles PATCH /projects/{projectID}/groups/{groupID}
func (h *GroupHandler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	groupID, err := h.parseGroupID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[RenameGroupRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	group, err := h.groupService.RenameGroup(r.Context(), ports.RenameGroupParams{
		GroupID: groupID,
		Name:    req.Name,
		ActorID: claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("group renamed",
		"group_id", groupID,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, domain.NewGroupSnapshot(group))
}

// HandleDeleteGroup handles DELETE /projects/{projectID}/groups/{groupID}
func (h *GroupHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	groupID, err := h.parseGroupID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.groupService.DeleteGroup(r.Context(), groupID, claims.UserID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("group deleted",
		"group_id", groupID,
		"user_id", claims.UserID,
	)

	WriteNoContent(w)
}

// --- Helper methods ---

// getClaims extracts and validates user claims from the request context
func (h *GroupHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
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

// parseProjectID extracts the project ID from the parent route
func (h *GroupHandler) parseProjectID(r *http.Request) (uuid.UUID, error) {
	projectIDStr := chi.URLParam(r, "projectID")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("projectID", false, "Invalid project ID")
		return uuid.Nil, v.Errors()
	}
	return projectID, nil
}

// parseGroupID extracts and validates the group ID from the URL
func (h *GroupHandler) parseGroupID(r *http.Request) (uuid.UUID, error) {
	groupIDStr := chi.URLParam(r, "groupID")
	groupID, err := uuid.Parse(groupIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("groupID", false, "Invalid group ID")
		return uuid.Nil, v.Errors()
	}
	return groupID, nil
}
