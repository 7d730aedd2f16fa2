package parsing

import (
	"errors"

	"github.com/jonathan/cv-ingest/internal/schemas"
	"github.com/jonathan/cv-ingest/internal/types"
)

// ValidateResponse rejects payloads without any CV signal: no experience,
// education or skill entries and no first name, last name or email.
func ValidateResponse(p Payload) error {
	if len(p) == 0 {
		return &ResponseInvalidError{Reasons: []string{"payload is empty"}}
	}

	err := schemas.Validate(schemas.CVSignal, signalView(p))
	if err == nil {
		return nil
	}

	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		reasons := make([]string, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			reasons = append(reasons, fe.Field+": "+fe.Message)
		}
		return &ResponseInvalidError{Reasons: reasons, Cause: err}
	}
	return &ResponseInvalidError{Reasons: []string{"signal schema unavailable"}, Cause: err}
}

// signalView resolves the payload through the normalizer's alias tables so
// the gate and Normalize agree on which keys carry data.
func signalView(p Payload) map[string]any {
	sources := personalSources(p)
	view := map[string]any{
		"firstName": personalField(sources, "firstName"),
		"lastName":  personalField(sources, "lastName"),
		"email":     personalField(sources, "email"),
	}

	lists := map[string][]map[string]any{
		"experiences": objectList(p, experienceListAliases...),
		"education":   objectList(p, "education"),
	}
	for key, entries := range lists {
		items := make([]any, 0, len(entries))
		for _, e := range entries {
			items = append(items, e)
		}
		view[key] = items
	}

	skills := normalizeSkills(p["skills"])
	items := make([]any, 0, len(skills))
	for _, s := range skills {
		items = append(items, s)
	}
	view["skills"] = items
	return view
}

// CheckNormalized is the final gate before persistence: the state must be
// complete and must not be empty.
func CheckNormalized(state *types.CVState) error {
	if state.IsEmpty() {
		return &NormalizationError{Message: "normalized draft is empty"}
	}
	if err := schemas.Validate(schemas.CVState, state); err != nil {
		return &NormalizationError{Message: "normalized draft is incomplete", Cause: err}
	}
	return nil
}
