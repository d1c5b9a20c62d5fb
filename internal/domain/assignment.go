package domain

import (
	"time"
)

// AssignmentState type for assignment lifecycle
type AssignmentState string

const (
	StatePending   AssignmentState = "pending"
	StateCompleted AssignmentState = "completed"
)

// Assignment links a catalog exercise to a patient. There is at most one
// assignment per (patient, exercise); its ID is derived from both.
type Assignment struct {
	ID          string          `bson:"_id" json:"id"`
	PatientID   string          `bson:"patientId" json:"patientId"`
	ExerciseID  string          `bson:"exerciseId" json:"exerciseId"`
	Context     string          `bson:"context" json:"context"` // denormalized from the catalog
	Verb        string          `bson:"verb,omitempty" json:"verb,omitempty"`
	TherapyType TherapyType     `bson:"therapyType" json:"therapyType"`
	State       AssignmentState `bson:"state" json:"state"`
	Priority    int             `bson:"priority" json:"priority"` // lower is served first

	TimesCompleted  int        `bson:"timesCompleted" json:"timesCompleted"`
	LastCompletedAt *time.Time `bson:"lastCompletedAt,omitempty" json:"lastCompletedAt,omitempty"`

	// Personalized is copied from the catalog at assignment time. Records
	// written before the copy existed leave it nil.
	Personalized *bool `bson:"personalized,omitempty" json:"personalized,omitempty"`

	// SRCard holds spaced-retrieval progress for SR exercises.
	SRCard *SRCard `bson:"srCard,omitempty" json:"srCard,omitempty"`

	AssignedAt time.Time `bson:"assignedAt" json:"assignedAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AssignmentID builds the document key for a patient's assignment.
func AssignmentID(patientID, exerciseID string) string {
	return patientID + "/" + exerciseID
}

// SRCard is the interval state of one spaced-retrieval prompt for a patient.
type SRCard struct {
	IntervalIndex     int       `bson:"intervalIndex" json:"intervalIndex"` // prepared interval for the next correct answer
	BaselineIndex     int       `bson:"baselineIndex" json:"baselineIndex"` // last interval consolidated by a success, -1 if none
	SuccessStreak     int       `bson:"successStreak" json:"successStreak"`
	Lapses            int       `bson:"lapses" json:"lapses"`
	LastAnswerCorrect bool      `bson:"lastAnswerCorrect" json:"lastAnswerCorrect"`
	LastTimerIndex    *int      `bson:"lastTimerIndex,omitempty" json:"lastTimerIndex,omitempty"`
	CurrentInterval   int       `bson:"currentInterval" json:"currentInterval"` // seconds
	NextDue           time.Time `bson:"nextDue" json:"nextDue"`
	Status            string    `bson:"status" json:"status"`
}
