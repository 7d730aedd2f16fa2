package parsing

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jonathan/cv-ingest/internal/types"
)

// skillNormalizations maps common skill name variants to canonical names.
// Every canonical value maps to itself when lowercased, so normalization is idempotent.
var skillNormalizations = map[string]string{
	"go":         "Go",
	"golang":     "Go",
	"go lang":    "Go",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
	"k8s":        "Kubernetes",
	"kubernetes": "Kubernetes",
	"react.js":   "React",
	"reactjs":    "React",
	"vue.js":     "Vue",
	"vuejs":      "Vue",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"postgres":   "PostgreSQL",
	"postgresql": "PostgreSQL",
	"python":     "Python",
}

// NormalizeSkillName normalizes a skill name to its canonical form.
// Unknown names keep their casing, with whitespace collapsed.
func NormalizeSkillName(skillName string) string {
	normalized := strings.Join(strings.Fields(skillName), " ")
	if normalized == "" {
		return ""
	}
	if canonical, ok := skillNormalizations[strings.ToLower(normalized)]; ok {
		return canonical
	}
	return normalized
}

// Field alias tables. The first alias of each entry is the canonical key.
var (
	personalAliases = map[string][]string{
		"firstName":  {"firstName", "first_name", "givenName"},
		"lastName":   {"lastName", "last_name", "familyName", "surname"},
		"email":      {"email", "emailAddress", "mail"},
		"phone":      {"phone", "phoneNumber", "telephone", "mobile"},
		"location":   {"location", "address", "city"},
		"profession": {"profession", "headline", "jobTitle", "title"},
		"website":    {"website", "url", "portfolio", "linkedin"},
		"summary":    {"summary", "profile", "about", "objective"},
	}

	experienceListAliases = []string{"experiences", "experience", "workExperience"}

	jobTitleAliases    = []string{"jobTitle", "title", "position", "role"}
	companyAliases     = []string{"company", "employer", "companyName", "organization"}
	locationAliases    = []string{"location", "city"}
	startDateAliases   = []string{"startDate", "start_date", "start", "from"}
	endDateAliases     = []string{"endDate", "end_date", "end", "to"}
	currentAliases     = []string{"current", "isCurrent", "currentlyWorking"}
	descriptionAliases = []string{"description", "summary", "responsibilities", "highlights"}

	schoolAliases = []string{"school", "schoolName", "institution", "university"}
	degreeAliases = []string{"degree", "qualification", "diploma"}
	fieldAliases  = []string{"field", "fieldOfStudy", "major"}

	languageNameAliases  = []string{"name", "language"}
	languageLevelAliases = []string{"level", "proficiency"}
	skillNameAliases     = []string{"name", "skill"}
)

// Normalize maps an untrusted parsing payload onto a complete CVState.
// It never fails: missing fields become empty strings, malformed lists become
// empty lists, and entries that are not objects are dropped.
func Normalize(p Payload) *types.CVState {
	state := types.NewCVState()
	if p == nil {
		return state
	}

	sources := personalSources(p)
	personal := func(field string) string { return personalField(sources, field) }
	state.PersonalInfo = types.PersonalInfo{
		FirstName:  personal("firstName"),
		LastName:   personal("lastName"),
		Email:      personal("email"),
		Phone:      personal("phone"),
		Location:   personal("location"),
		Profession: personal("profession"),
		Website:    personal("website"),
		Summary:    personal("summary"),
	}

	for _, entry := range objectList(p, experienceListAliases...) {
		state.Experiences = append(state.Experiences, types.Experience{
			JobTitle:    firstString(entry, jobTitleAliases...),
			Company:     firstString(entry, companyAliases...),
			Location:    firstString(entry, locationAliases...),
			StartDate:   firstString(entry, startDateAliases...),
			EndDate:     firstString(entry, endDateAliases...),
			Current:     firstBool(entry, currentAliases...),
			Description: firstString(entry, descriptionAliases...),
		})
	}

	for _, entry := range objectList(p, "education") {
		state.Education = append(state.Education, types.Education{
			School:      firstString(entry, schoolAliases...),
			Degree:      firstString(entry, degreeAliases...),
			Field:       firstString(entry, fieldAliases...),
			Location:    firstString(entry, locationAliases...),
			StartDate:   firstString(entry, startDateAliases...),
			EndDate:     firstString(entry, endDateAliases...),
			Current:     firstBool(entry, currentAliases...),
			Description: firstString(entry, descriptionAliases...),
		})
	}

	state.Skills = normalizeSkills(p["skills"])

	if list, ok := p["languages"].([]any); ok {
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if name := strings.TrimSpace(v); name != "" {
					state.Languages = append(state.Languages, types.Language{Language: name})
				}
			case map[string]any:
				state.Languages = append(state.Languages, types.Language{
					Language: firstString(v, languageNameAliases...),
					Level:    firstString(v, languageLevelAliases...),
				})
			}
		}
	}

	return state
}

func normalizeSkills(v any) []string {
	skills := []string{}
	list, ok := v.([]any)
	if !ok {
		return skills
	}

	seen := make(map[string]bool)
	for _, item := range list {
		var raw string
		switch s := item.(type) {
		case string:
			raw = s
		case map[string]any:
			raw = firstString(s, skillNameAliases...)
		default:
			continue
		}

		name := NormalizeSkillName(raw)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		skills = append(skills, name)
	}
	return skills
}

// personalSources orders the maps identity fields are read from: nested
// personalInfo wins over the top level.
func personalSources(p Payload) []map[string]any {
	sources := []map[string]any{}
	if nested, ok := p["personalInfo"].(map[string]any); ok {
		sources = append(sources, nested)
	}
	return append(sources, p)
}

func personalField(sources []map[string]any, field string) string {
	for _, src := range sources {
		if v := firstString(src, personalAliases[field]...); v != "" {
			return v
		}
	}
	return ""
}

// objectList returns the object entries of the first alias whose list holds
// at least one object
func objectList(m map[string]any, keys ...string) []map[string]any {
	for _, key := range keys {
		list, ok := m[key].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// firstString returns the first non-blank alias value coerced to a string
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := coerceString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				lines = append(lines, strings.TrimSpace(s))
			}
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// firstBool reads the first alias that is present at all
func firstBool(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes", "1":
				return true
			}
			return false
		case float64:
			return t != 0
		}
		return false
	}
	return false
}
