// Package types defines the data structures shared across the ingestion pipeline.
package types

import "strings"

// PersonalInfo holds the candidate's contact and headline fields
type PersonalInfo struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Location   string `json:"location"`
	Profession string `json:"profession"`
	Website    string `json:"website"`
	Summary    string `json:"summary"`
}

// Experience is a single work history entry
type Experience struct {
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// Education is a single education history entry
type Education struct {
	School      string `json:"school"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// Language is a spoken language with an optional proficiency level
type Language struct {
	Language string `json:"language"`
	Level    string `json:"level"`
}

// CVState is the canonical CV draft. Every list is non-nil and every string
// field is present, so consumers never need to guard against missing keys.
type CVState struct {
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Experiences  []Experience `json:"experiences"`
	Education    []Education  `json:"education"`
	Skills       []string     `json:"skills"`
	Languages    []Language   `json:"languages"`
}

// NewCVState returns an empty but complete CV state
func NewCVState() *CVState {
	return &CVState{
		Experiences: []Experience{},
		Education:   []Education{},
		Skills:      []string{},
		Languages:   []Language{},
	}
}

// EnsureComplete replaces nil lists with empty ones
func (s *CVState) EnsureComplete() {
	if s.Experiences == nil {
		s.Experiences = []Experience{}
	}
	if s.Education == nil {
		s.Education = []Education{}
	}
	if s.Skills == nil {
		s.Skills = []string{}
	}
	if s.Languages == nil {
		s.Languages = []Language{}
	}
}

// IsEmpty reports whether the state carries no information at all
func (s *CVState) IsEmpty() bool {
	if s == nil {
		return true
	}
	if len(s.Experiences) > 0 || len(s.Education) > 0 || len(s.Skills) > 0 || len(s.Languages) > 0 {
		return false
	}
	p := s.PersonalInfo
	for _, v := range []string{p.FirstName, p.LastName, p.Email, p.Phone, p.Location, p.Profession, p.Website, p.Summary} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the state
func (s *CVState) Clone() *CVState {
	if s == nil {
		return nil
	}
	out := &CVState{
		PersonalInfo: s.PersonalInfo,
		Experiences:  append([]Experience{}, s.Experiences...),
		Education:    append([]Education{}, s.Education...),
		Skills:       append([]string{}, s.Skills...),
		Languages:    append([]Language{}, s.Languages...),
	}
	return out
}
