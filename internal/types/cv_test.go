package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCVState_IsCompleteAndEmpty(t *testing.T) {
	s := NewCVState()

	assert.NotNil(t, s.Experiences)
	assert.NotNil(t, s.Education)
	assert.NotNil(t, s.Skills)
	assert.NotNil(t, s.Languages)
	assert.True(t, s.IsEmpty())
}

func TestCVState_JSONUsesCamelCaseAndEmptyLists(t *testing.T) {
	data, err := json.Marshal(NewCVState())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "personalInfo")
	assert.Equal(t, []any{}, raw["experiences"])
	assert.Equal(t, []any{}, raw["education"])
	assert.Equal(t, []any{}, raw["skills"])
	assert.Equal(t, []any{}, raw["languages"])

	personal := raw["personalInfo"].(map[string]any)
	for _, key := range []string{"firstName", "lastName", "email", "phone", "location", "profession", "website", "summary"} {
		assert.Contains(t, personal, key)
	}
}

func TestCVState_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		state *CVState
		want  bool
	}{
		{name: "nil", state: nil, want: true},
		{name: "blank name only", state: &CVState{PersonalInfo: PersonalInfo{FirstName: "   "}}, want: true},
		{name: "email", state: &CVState{PersonalInfo: PersonalInfo{Email: "a@b.c"}}, want: false},
		{name: "skills", state: &CVState{Skills: []string{"Go"}}, want: false},
		{name: "languages", state: &CVState{Languages: []Language{{Language: "French"}}}, want: false},
		{name: "experience", state: &CVState{Experiences: []Experience{{}}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsEmpty())
		})
	}
}

func TestCVState_EnsureComplete(t *testing.T) {
	s := &CVState{}
	s.EnsureComplete()

	assert.Equal(t, []Experience{}, s.Experiences)
	assert.Equal(t, []Education{}, s.Education)
	assert.Equal(t, []string{}, s.Skills)
	assert.Equal(t, []Language{}, s.Languages)
}

func TestCVState_CloneIsDeep(t *testing.T) {
	s := NewCVState()
	s.Skills = append(s.Skills, "Go")
	s.Experiences = append(s.Experiences, Experience{Company: "Acme"})

	c := s.Clone()
	c.Skills[0] = "Rust"
	c.Experiences[0].Company = "Other"

	assert.Equal(t, "Go", s.Skills[0])
	assert.Equal(t, "Acme", s.Experiences[0].Company)
}
