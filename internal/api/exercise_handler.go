package api

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler serves catalog authoring and therapist review.
type ExerciseHandler struct {
	exerciseService  service.ExerciseService
	selectionService service.SelectionService
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService, selectionService service.SelectionService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, selectionService: selectionService}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateVNESTRequest defines the expected JSON for generating a VNEST exercise.
type CreateVNESTRequest struct {
	Context    string            `json:"context" binding:"required"`
	Level      domain.Level      `json:"level" binding:"omitempty,oneof=facil medio dificil"`
	Visibility domain.Visibility `json:"visibility" binding:"omitempty,oneof=public private"`
	CreatedBy  string            `json:"createdBy"`
}

// UpdateExerciseRequest carries therapist edits. Omitted fields are kept.
type UpdateExerciseRequest struct {
	Context *string              `json:"context"`
	Verb    *string              `json:"verb"`
	VNEST   *domain.VNESTContent `json:"vnest"`
	SR      *domain.SRContent    `json:"sr"`
}

type ReviewExerciseRequest struct {
	Reviewed *bool `json:"reviewed"`
}

type PersonalizeRequest struct {
	PatientID string `json:"patientId" binding:"required"`
}

// --- Handler Methods ---

// CreateVNEST godoc
// @Summary Generate a VNEST exercise
// @Description Runs the generation pipeline for a context and stores the validated result in the catalog.
// @Tags Exercises
// @Accept json
// @Produce json
// @Param exercise body CreateVNESTRequest true "Context and options"
// @Success 201 {object} ExerciseResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Generation failed"
// @Router /exercises/vnest [post]
func (h *ExerciseHandler) CreateVNEST(c *gin.Context) {
	var req CreateVNESTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exercise, err := h.exerciseService.CreateVNEST(c.Request.Context(), req.Context, req.Level, req.Visibility, req.CreatedBy)
	if err != nil {
		abortWithServiceError(c, err, "Failed to create exercise.")
		return
	}
	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

// ListExercises godoc
// @Summary List catalog exercises
// @Description Unreviewed exercises come first, then by verb.
// @Tags Exercises
// @Produce json
// @Param context query string false "Filter by context"
// @Param verb query string false "Filter by verb"
// @Param therapyType query string false "VNEST or SR"
// @Param reviewed query bool false "Filter by review state"
// @Success 200 {array} ExerciseResponse
// @Router /exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	filter := repository.ExerciseFilter{
		Context:     c.Query("context"),
		Verb:        c.Query("verb"),
		TherapyType: domain.TherapyType(c.Query("therapyType")),
	}
	if raw, ok := c.GetQuery("reviewed"); ok {
		reviewed, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Query parameter 'reviewed' must be a boolean.")
			return
		}
		filter.Reviewed = &reviewed
	}

	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), filter)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve exercises.")
		return
	}
	c.JSON(http.StatusOK, MapExercisesToResponse(exercises))
}

// GetExercise godoc
// @Summary Get one catalog exercise
// @Tags Exercises
// @Produce json
// @Param id path string true "Exercise ID"
// @Success 200 {object} ExerciseResponse
// @Failure 404 {object} gin.H "Exercise not found"
// @Router /exercises/{id} [get]
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	exercise, err := h.exerciseService.GetExercise(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve exercise.")
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// UpdateExercise godoc
// @Summary Edit a catalog exercise
// @Description VNEST content must keep exactly ten sentences and four options per question.
// @Tags Exercises
// @Accept json
// @Produce json
// @Param id path string true "Exercise ID"
// @Param exercise body UpdateExerciseRequest true "Fields to change"
// @Success 200 {object} ExerciseResponse
// @Failure 400 {object} gin.H "Invalid content"
// @Failure 404 {object} gin.H "Exercise not found"
// @Router /exercises/{id} [patch]
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), c.Param("id"), service.ExerciseUpdate{
		Context: req.Context,
		Verb:    req.Verb,
		VNEST:   req.VNEST,
		SR:      req.SR,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to update exercise.")
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// ReviewExercise godoc
// @Summary Mark an exercise as reviewed by a therapist
// @Tags Exercises
// @Accept json
// @Produce json
// @Param id path string true "Exercise ID"
// @Param review body ReviewExerciseRequest false "Defaults to reviewed=true"
// @Success 200 {object} ExerciseResponse
// @Router /exercises/{id}/review [post]
func (h *ExerciseHandler) ReviewExercise(c *gin.Context) {
	var req ReviewExerciseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	reviewed := req.Reviewed == nil || *req.Reviewed
	exercise, err := h.exerciseService.MarkReviewed(c.Request.Context(), c.Param("id"), reviewed)
	if err != nil {
		abortWithServiceError(c, err, "Failed to review exercise.")
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// PersonalizeExercise godoc
// @Summary Personalize an exercise for a patient
// @Description Generates a private adaptation of the exercise and assigns it to the patient.
// @Tags Exercises
// @Accept json
// @Produce json
// @Param id path string true "Base exercise ID"
// @Param request body PersonalizeRequest true "Target patient"
// @Success 201 {object} SelectionResponse
// @Failure 404 {object} gin.H "Exercise or patient not found"
// @Failure 502 {object} gin.H "Generation failed"
// @Router /exercises/{id}/personalize [post]
func (h *ExerciseHandler) PersonalizeExercise(c *gin.Context) {
	var req PersonalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exercise, assignment, err := h.exerciseService.Personalize(c.Request.Context(), c.Param("id"), req.PatientID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to personalize exercise.")
		return
	}
	c.JSON(http.StatusCreated, SelectionResponse{
		Source:     service.SourceNew,
		Exercise:   MapExerciseToResponse(exercise),
		Assignment: MapAssignmentToResponse(assignment),
	})
}

// GetArchiveURL godoc
// @Summary Get a download link for the archived generation output
// @Tags Exercises
// @Produce json
// @Param id path string true "Exercise ID"
// @Success 200 {object} gin.H "url"
// @Failure 404 {object} gin.H "No archive for this exercise"
// @Router /exercises/{id}/archive-url [get]
func (h *ExerciseHandler) GetArchiveURL(c *gin.Context) {
	url, err := h.exerciseService.ArchiveURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to generate archive URL.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ListVerbs godoc
// @Summary List the verbs of a context
// @Description Highlights verbs the patient has pending personalized work for.
// @Tags Practice
// @Produce json
// @Param context path string true "Exercise context"
// @Param patientId query string false "Patient ID"
// @Success 200 {array} service.VerbHighlight
// @Router /contexts/{context}/verbs [get]
func (h *ExerciseHandler) ListVerbs(c *gin.Context) {
	verbs, err := h.selectionService.ListVerbsForContext(c.Request.Context(), c.Param("context"), c.Query("patientId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to list verbs.")
		return
	}
	c.JSON(http.StatusOK, verbs)
}
