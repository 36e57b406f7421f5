package model

// MentorCandidate is a stored peer outcome record. Read-only to the matcher.
type MentorCandidate struct {
	ID                   string  `json:"id" db:"id"`
	UserID               string  `json:"user_id" db:"user_id"`
	SkinScore            float64 `json:"skin_score" db:"skin_score"`
	PrimaryConcern       string  `json:"primary_concern" db:"primary_concern"`
	ProcedureName        *string `json:"procedure_name,omitempty" db:"procedure_name"`
	Comment              string  `json:"comment" db:"comment"`
	BeforeImageURL       *string `json:"before_image_url,omitempty" db:"before_image_url"`
	AfterImageURL        *string `json:"after_image_url,omitempty" db:"after_image_url"`
	IsVerified           bool    `json:"is_verified" db:"is_verified"`
	VisitCount           int     `json:"visit_count" db:"visit_count"`
	VerifiedFacilityName *string `json:"verified_facility_name,omitempty" db:"verified_facility_name"`
	SubjectAge           *int    `json:"subject_age,omitempty" db:"-"`
	SubjectGender        *string `json:"subject_gender,omitempty" db:"subject_gender"`
	SubjectBirthYear     *int    `json:"subject_birth_year,omitempty" db:"subject_birth_year"`
	SubjectActive        bool    `json:"subject_active" db:"subject_active"`
	IsActive             bool    `json:"is_active" db:"is_active"`
}
