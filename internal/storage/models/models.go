package models

import "time"

// Challenge is a teacher-authored assignment: a plan file plus the textual
// context the estimation pipeline feeds to the reasoning service.
type Challenge struct {
	ID           string
	Name         string
	Objectives   string
	Instructions string
	SiteLocation string
	FileURL      string
	CreatedAt    time.Time
}

// Analysis is one estimation pipeline run against a challenge's plan.
// Re-runs create new rows; the latest row is the authoritative AI estimate.
type Analysis struct {
	ID                string
	ChallengeID       string
	OverallConfidence float64
	Status            string
	CreatedAt         time.Time
}

// StructuralElement is one physical component extracted from a plan.
// Dimensions keep the drawing's original free-text format.
type StructuralElement struct {
	ID               string
	AnalysisID       string
	ElementType      string
	MaterialCategory string
	Dimensions       string
	Coordinates      string
	CreatedAt        time.Time
}

// BoQLine is one priced bill-of-quantities row. UnitPrice nil means no
// market price was found; Amount is then 0, never null-propagated.
type BoQLine struct {
	ID           string
	AnalysisID   string
	ItemNumber   int
	Description  string
	Quantity     float64
	Unit         string
	CostCategory string
	UnitPrice    *float64
	Amount       float64
	Assumptions  string
	CreatedAt    time.Time
}

// EstimateSummary aggregates one analysis into the seven category amounts
// plus the derived labor/contingency/grand-total figures. One row per
// challenge, replaced wholesale on re-runs and curation saves.
type EstimateSummary struct {
	ID                  string
	ChallengeID         string
	AnalysisID          string
	EarthworkAmount     float64
	FormworkAmount      float64
	MasonryAmount       float64
	ConcreteAmount      float64
	SteelworkAmount     float64
	CarpentryAmount     float64
	RoofingAmount       float64
	TotalMaterialCost   float64
	LaborCost           float64
	ContingenciesAmount float64
	GrandTotalCost      float64
	CreatedAt           time.Time
}

// MaterialPrice is one market price observation, either logged by the
// aggregator or entered by a teacher in the price book (TeacherID set).
type MaterialPrice struct {
	ID        int64
	Material  string
	Brand     string
	Size      string
	Unit      string
	Price     string
	Vendor    string
	Location  string
	TeacherID string
	CreatedAt time.Time
}

// CostEstimate is a student's own submission header for one challenge.
type CostEstimate struct {
	ID                    string
	StudentID             string
	ChallengeID           string
	Status                string
	SubtotalAmount        float64
	ContingencyPercentage float64
	ContingencyAmount     float64
	TotalAmount           float64
	SubmittedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type CostEstimateItem struct {
	ID           string
	EstimateID   string
	CostCategory string
	MaterialName string
	Quantity     float64
	Unit         string
	UnitPrice    float64
	Amount       float64
}

// AccuracyRecord maps a (student, challenge) pair to its latest accuracy
// score. Details carries the scorer's JSON breakdown verbatim.
type AccuracyRecord struct {
	ID          string
	StudentID   string
	ChallengeID string
	Accuracy    float64
	Details     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
