package api

import (
	"apphasia/exercise-engine/internal/logger"
	"apphasia/exercise-engine/internal/service"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	log *logger.Logger,
	selectionService service.SelectionService,
	assignmentService service.AssignmentService,
	exerciseService service.ExerciseService,
	patientService service.PatientService,
) {
	patientHandler := NewPatientHandler(selectionService, assignmentService, exerciseService, patientService)
	exerciseHandler := NewExerciseHandler(exerciseService, selectionService)

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", headerRequestID)
	corsCfg.ExposeHeaders = []string{headerRequestID}
	router.Use(cors.New(corsCfg), RequestLogger(log))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/patients", patientHandler.ListPatients)

		patients := apiV1.Group("/patients/:patientId")
		{
			patients.PUT("", patientHandler.UpsertPatient)
			patients.GET("", patientHandler.GetPatient)
			patients.POST("/profile", patientHandler.StructureProfile)

			// Selection engine
			patients.GET("/exercise", patientHandler.SelectExercise)

			// Assignments
			patients.GET("/assignments", patientHandler.ListAssignments)
			patients.POST("/assignments", patientHandler.AssignExercise)
			patients.POST("/assignments/:exerciseId/complete", patientHandler.CompleteExercise)

			// Spaced retrieval
			patients.POST("/sr", patientHandler.GenerateSR)
			patients.POST("/sr/:exerciseId/attempt", patientHandler.RecordSRAttempt)
		}

		apiV1.GET("/contexts/:context/verbs", exerciseHandler.ListVerbs)

		exercises := apiV1.Group("/exercises")
		{
			exercises.GET("", exerciseHandler.ListExercises)
			exercises.POST("/vnest", exerciseHandler.CreateVNEST)
			exercises.GET("/:id", exerciseHandler.GetExercise)
			exercises.PATCH("/:id", exerciseHandler.UpdateExercise)
			exercises.POST("/:id/review", exerciseHandler.ReviewExercise)
			exercises.POST("/:id/personalize", exerciseHandler.PersonalizeExercise)
			exercises.GET("/:id/archive-url", exerciseHandler.GetArchiveURL)
		}
	}
}
