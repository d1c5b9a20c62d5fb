package api

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/repository"
	"apphasia/exercise-engine/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PatientHandler serves the patient-facing practice flow.
type PatientHandler struct {
	selectionService  service.SelectionService
	assignmentService service.AssignmentService
	exerciseService   service.ExerciseService
	patientService    service.PatientService
}

func NewPatientHandler(
	selectionService service.SelectionService,
	assignmentService service.AssignmentService,
	exerciseService service.ExerciseService,
	patientService service.PatientService,
) *PatientHandler {
	return &PatientHandler{
		selectionService:  selectionService,
		assignmentService: assignmentService,
		exerciseService:   exerciseService,
		patientService:    patientService,
	}
}

// --- DTOs ---

type UpsertPatientRequest struct {
	Name    string         `json:"name" binding:"required"`
	Profile map[string]any `json:"profile"`
}

type StructureProfileRequest struct {
	Text string `json:"text" binding:"required"`
}

type AssignExerciseRequest struct {
	ExerciseID string `json:"exerciseId" binding:"required"`
	Context    string `json:"context"`
}

type CompleteExerciseRequest struct {
	Context string `json:"context" binding:"required"`
	Success *bool  `json:"success"`
}

type SRAttemptRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

// --- Handler Methods ---

// UpsertPatient godoc
// @Summary Create or update a patient profile
// @Tags Patients
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param patient body UpsertPatientRequest true "Name and profile"
// @Success 200 {object} PatientResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /patients/{patientId} [put]
func (h *PatientHandler) UpsertPatient(c *gin.Context) {
	var req UpsertPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	patient, err := h.patientService.UpsertPatient(c.Request.Context(), c.Param("patientId"), req.Name, req.Profile)
	if err != nil {
		abortWithServiceError(c, err, "Failed to save patient.")
		return
	}
	c.JSON(http.StatusOK, MapPatientToResponse(patient))
}

// GetPatient godoc
// @Summary Get a patient profile
// @Tags Patients
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 200 {object} PatientResponse
// @Failure 404 {object} gin.H "Patient not found"
// @Router /patients/{patientId} [get]
func (h *PatientHandler) GetPatient(c *gin.Context) {
	patient, err := h.patientService.GetPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve patient.")
		return
	}
	c.JSON(http.StatusOK, MapPatientToResponse(patient))
}

// ListPatients godoc
// @Summary List all patients
// @Description Oldest first, as the therapist dashboard shows them.
// @Tags Patients
// @Produce json
// @Success 200 {array} PatientResponse
// @Router /patients [get]
func (h *PatientHandler) ListPatients(c *gin.Context) {
	patients, err := h.patientService.ListPatients(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve patients.")
		return
	}
	c.JSON(http.StatusOK, MapPatientsToResponse(patients))
}

// StructureProfile godoc
// @Summary Build a structured profile from free-text notes
// @Description Extracts personal data, family, routines and objects and merges them into the profile.
// @Tags Patients
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param notes body StructureProfileRequest true "Free-text notes about the patient"
// @Success 200 {object} PatientResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Generation failed"
// @Router /patients/{patientId}/profile [post]
func (h *PatientHandler) StructureProfile(c *gin.Context) {
	var req StructureProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	patient, err := h.patientService.StructureProfile(c.Request.Context(), c.Param("patientId"), req.Text)
	if err != nil {
		abortWithServiceError(c, err, "Failed to structure patient profile.")
		return
	}
	c.JSON(http.StatusOK, MapPatientToResponse(patient))
}

// SelectExercise godoc
// @Summary Get the next exercise for a patient
// @Description Returns pending work first, then assigns an unseen exercise, then resurfaces the oldest completed one.
// @Tags Practice
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param context query string true "Exercise context"
// @Param verb query string false "Restrict to one verb"
// @Success 200 {object} SelectionResponse
// @Failure 404 {object} gin.H "No exercises available"
// @Router /patients/{patientId}/exercise [get]
func (h *PatientHandler) SelectExercise(c *gin.Context) {
	exerciseContext := c.Query("context")
	if exerciseContext == "" {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'context' is required.")
		return
	}
	sel, err := h.selectionService.SelectExercise(c.Request.Context(), c.Param("patientId"), exerciseContext, c.Query("verb"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to select exercise.")
		return
	}
	c.JSON(http.StatusOK, SelectionResponse{
		Source:     sel.Source,
		Exercise:   MapExerciseToResponse(sel.Exercise),
		Assignment: MapAssignmentToResponse(sel.Assignment),
	})
}

// ListAssignments godoc
// @Summary List a patient's assignments
// @Tags Practice
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param context query string false "Filter by context"
// @Param state query string false "pending or completed"
// @Success 200 {array} AssignmentResponse
// @Router /patients/{patientId}/assignments [get]
func (h *PatientHandler) ListAssignments(c *gin.Context) {
	state := domain.AssignmentState(c.Query("state"))
	if state != "" && state != domain.StatePending && state != domain.StateCompleted {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'state' must be pending or completed.")
		return
	}
	assignments, err := h.assignmentService.ListAssignments(c.Request.Context(), c.Param("patientId"), repository.AssignmentFilter{
		Context: c.Query("context"),
		Verb:    c.Query("verb"),
		State:   state,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve assignments.")
		return
	}
	c.JSON(http.StatusOK, MapAssignmentsToResponse(assignments))
}

// AssignExercise godoc
// @Summary Assign an exercise to a patient
// @Tags Practice
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param assignment body AssignExerciseRequest true "Exercise and optional context"
// @Success 201 {object} AssignmentResponse
// @Failure 422 {object} gin.H "Context cannot be resolved from the catalog"
// @Router /patients/{patientId}/assignments [post]
func (h *PatientHandler) AssignExercise(c *gin.Context) {
	var req AssignExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	assignment, err := h.assignmentService.Assign(c.Request.Context(), c.Param("patientId"), req.ExerciseID, req.Context)
	if err != nil {
		abortWithServiceError(c, err, "Failed to assign exercise.")
		return
	}
	c.JSON(http.StatusCreated, MapAssignmentToResponse(assignment))
}

// CompleteExercise godoc
// @Summary Mark an assigned exercise as completed
// @Tags Practice
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param exerciseId path string true "Exercise ID"
// @Param completion body CompleteExerciseRequest true "Context and optional outcome"
// @Success 200 {object} AssignmentResponse
// @Failure 404 {object} gin.H "Assignment not found"
// @Router /patients/{patientId}/assignments/{exerciseId}/complete [post]
func (h *PatientHandler) CompleteExercise(c *gin.Context) {
	var req CompleteExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	assignment, err := h.assignmentService.Complete(c.Request.Context(), c.Param("patientId"), c.Param("exerciseId"), req.Context, req.Success)
	if err != nil {
		abortWithServiceError(c, err, "Failed to complete exercise.")
		return
	}
	c.JSON(http.StatusOK, MapAssignmentToResponse(assignment))
}

// GenerateSR godoc
// @Summary Generate spaced-retrieval prompts from the patient profile
// @Tags Spaced Retrieval
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 201 {array} ExerciseResponse
// @Failure 502 {object} gin.H "Generation failed"
// @Router /patients/{patientId}/sr [post]
func (h *PatientHandler) GenerateSR(c *gin.Context) {
	exercises, err := h.exerciseService.CreateSRForPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to generate SR exercises.")
		return
	}
	c.JSON(http.StatusCreated, MapExercisesToResponse(exercises))
}

// RecordSRAttempt godoc
// @Summary Record an answer to a spaced-retrieval prompt
// @Tags Spaced Retrieval
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param exerciseId path string true "Exercise ID"
// @Param attempt body SRAttemptRequest true "Whether the answer was correct"
// @Success 200 {object} AssignmentResponse
// @Router /patients/{patientId}/sr/{exerciseId}/attempt [post]
func (h *PatientHandler) RecordSRAttempt(c *gin.Context) {
	var req SRAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	assignment, err := h.assignmentService.RecordSRAttempt(c.Request.Context(), c.Param("patientId"), c.Param("exerciseId"), *req.Correct)
	if err != nil {
		abortWithServiceError(c, err, "Failed to record attempt.")
		return
	}
	c.JSON(http.StatusOK, MapAssignmentToResponse(assignment))
}
