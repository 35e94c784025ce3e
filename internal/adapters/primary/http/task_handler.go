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

// TaskHandler handles HTTP requests for tasks
type TaskHandler struct {
	taskService  ports.TaskService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(
	taskService ports.TaskService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		taskService:  taskService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "task"),
	}
}

// Router sets up a new chi Router for all task-related routes.
func (h *TaskHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all task endpoints.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreateTask)

	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTask)
		r.Patch("/", h.HandleUpdateTask)
		r.Patch("/move", h.HandleMoveTask)
		r.Delete("/", h.HandleDeleteTask)
	})
}

// --- Request/Response DTOs ---

// CreateTaskRequest defines the expected JSON body for creating a task
type CreateTaskRequest struct {
	GroupID     string  `json:"listId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assigneeId"`
	Position    int32   `json:"position"`
}

// Validate validates the create task request
func (r *CreateTaskRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("title", r.Title).
		MaxLength("title", r.Title, 255)

	v.MaxLength("description", r.Description, 10000)

	v.Required("listId", r.GroupID).
		UUID("listId", r.GroupID)

	if r.AssigneeID != nil {
		v.UUID("assigneeId", *r.AssigneeID)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateTaskRequest defines the expected JSON body for a partial task
// update. Omitted fields are left unchanged; an explicit null assignee
// clears the assignment.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	AssigneeID  *string `json:"assigneeId"`

	// ClearAssignee distinguishes "assigneeId": null from an omitted
	// field, which plain pointer decoding cannot.
	ClearAssignee bool `json:"clearAssignee"`
}

// Validate validates the update task request
func (r *UpdateTaskRequest) Validate() error {
	v := validation.NewValidator()

	if r.Title != nil {
		v.Required("title", *r.Title).
			MaxLength("title", *r.Title, 255)
	}

	if r.Description != nil {
		v.MaxLength("description", *r.Description, 10000)
	}

	if r.AssigneeID != nil {
		v.UUID("assigneeId", *r.AssigneeID)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// MoveTaskRequest defines the expected JSON body for moving a task
type MoveTaskRequest struct {
	GroupID  string `json:"listId"`
	Position int32  `json:"position"`
}

// Validate validates the move task request
func (r *MoveTaskRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("listId", r.GroupID).
		UUID("listId", r.GroupID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// --- Handlers ---

// HandleCreateTask handles POST /tasks
func (h *TaskHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateTaskRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var assigneeID *uuid.UUID
	if req.AssigneeID != nil {
		parsed, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		assigneeID = &parsed
	}

	task, err := h.taskService.CreateTask(r.Context(), ports.CreateTaskParams{
		GroupID:     groupID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  assigneeID,
		Position:    req.Position,
		ActorID:     claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("task created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"user_id", claims.UserID,
	)

	WriteCreated(w, domain.NewTaskSnapshot(task))
}

// HandleGetTask handles GET /tasks/{taskID}
func (h *TaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	taskID, err := h.parseTaskID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, domain.NewTaskSnapshot(task))
}

// HandleUpdateTask handles PATCH /tasks/{taskID}
func (h *TaskHandler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	taskID, err := h.parseTaskID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTaskRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var assigneeID *uuid.UUID
	if req.AssigneeID != nil {
		parsed, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		assigneeID = &parsed
	}

	task, err := h.taskService.UpdateTask(r.Context(), ports.UpdateTaskParams{
		TaskID:        taskID,
		Title:         req.Title,
		Description:   req.Description,
		Completed:     req.Completed,
		AssigneeID:    assigneeID,
		ClearAssignee: req.ClearAssignee,
		ActorID:       claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("task updated",
		"task_id", taskID,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, domain.NewTaskSnapshot(task))
}

// HandleMoveTask handles PATCH /tasks/{taskID}/move
func (h *TaskHandler) HandleMoveTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	taskID, err := h.parseTaskID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[MoveTaskRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.taskService.MoveTask(r.Context(), ports.MoveTaskParams{
		TaskID:   taskID,
		GroupID:  groupID,
		Position: req.Position,
		ActorID:  claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("task moved",
		"task_id", taskID,
		"group_id", groupID,
		"user_id", claims.UserID,
	)

	WriteJSON(w, http.StatusOK, domain.NewTaskSnapshot(task))
}

// HandleDeleteTask handles DELETE /tasks/{taskID}
func (h *TaskHandler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	taskID, err := h.parseTaskID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), taskID, claims.UserID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("task deleted",
		"task_id", taskID,
		"user_id", claims.UserID,
	)

	WriteNoContent(w)
}

// --- Helper methods ---

// getClaims extracts and validates user claims from the request context
func (h *TaskHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
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

// parseTaskID extracts and validates the task ID from the URL
func (h *TaskHandler) parseTaskID(r *http.Request) (uuid.UUID, error) {
	taskIDStr := chi.URLParam(r, "taskID")
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("taskID", false, "Invalid task ID")
		return uuid.Nil, v.Errors()
	}
	return taskID, nil
}
