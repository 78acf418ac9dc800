package models

//
// Sensitivity classification (request content)
//

// SensitivityLevel is the ordinal classification of how restrictively a
// request's content must be handled.
type SensitivityLevel string

const (
	LevelPublic       SensitivityLevel = "public"
	LevelInternal     SensitivityLevel = "internal"
	LevelConfidential SensitivityLevel = "confidential"
	LevelRestricted   SensitivityLevel = "restricted"
)

// levelRanks orders levels so that "highest wins" comparisons are cheap.
var levelRanks = map[SensitivityLevel]int{
	LevelPublic:       0,
	LevelInternal:     1,
	LevelConfidential: 2,
	LevelRestricted:   3,
}

// Rank returns the ordinal position of the level. Unknown levels rank as public.
func (l SensitivityLevel) Rank() int {
	return levelRanks[l]
}

// AtLeast reports whether l is as restrictive as other or more so.
func (l SensitivityLevel) AtLeast(other SensitivityLevel) bool {
	return l.Rank() >= other.Rank()
}

// Max returns the more restrictive of the two levels.
func (l SensitivityLevel) Max(other SensitivityLevel) SensitivityLevel {
	if other.Rank() > l.Rank() {
		return other
	}
	return l
}

// SensitivityAssessment is the immutable result of classifying one request.
// PIIDetected implies PIICategories is non-empty; categories are deduplicated
// and sorted so identical input always produces an identical assessment.
type SensitivityAssessment struct {
	Level            SensitivityLevel `json:"level"`
	PIIDetected      bool             `json:"pii_detected"`
	PIICategories    []string         `json:"pii_categories,omitempty"`
	DocumentAttached bool             `json:"document_attached"`
}
