package colmeia

import (
	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
)

// Validate checks a complete colmeia against the schema rules and returns
// one entry per offending field, or nil when the record is valid.
func Validate(c colmodels.Colmeia) FieldErrors {
	fields := FieldErrors{}

	if c.Identifier == "" {
		fields["identifier"] = FieldError{
			Message: "O campo identificador é obrigatório.",
			Path:    "identifier",
			Kind:    KindRequired,
		}
	}

	if c.Location == "" {
		fields["location"] = FieldError{
			Message: "O campo localização é obrigatório.",
			Path:    "location",
			Kind:    KindRequired,
		}
	}

	if c.Weight != nil && *c.Weight < 0 {
		fields["weight"] = FieldError{
			Message: "O peso não pode ser negativo.",
			Path:    "weight",
			Kind:    KindMin,
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
