package domain

import "time"

// Sex of a child record: 0 unknown, 1 male, 2 female.
type Sex int

const (
	SexUnknown Sex = iota
	SexMale
	SexFemale
)

// Child is a child record owned by a parent account.
type Child struct {
	ID                  string     `json:"id,omitempty"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName,omitempty"`
	BirthDate           *time.Time `json:"birthDate,omitempty"`
	Sex                 *Sex       `json:"sex,omitempty"`
	SupportLevel        *int       `json:"supportLevel,omitempty"` // 0..3
	PrimaryDiagnosis    string     `json:"primaryDiagnosis,omitempty"`
	NonVerbal           *bool      `json:"nonVerbal,omitempty"`
	CommunicationMethod string     `json:"communicationMethod,omitempty"`
	Allergies           string     `json:"allergies,omitempty"`
	Medications         string     `json:"medications,omitempty"`
	Triggers            string     `json:"triggers,omitempty"`
	CalmingStrategies   string     `json:"calmingStrategies,omitempty"`
	SchoolOrCenter      string     `json:"schoolOrCenter,omitempty"`
	CurrentGoals        string     `json:"currentGoals,omitempty"`
}

// DisplayName joins first and last name.
func (c Child) DisplayName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
