package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation over a CityProfile and adds the
// cross-field checks spec.md calls out explicitly (§6, §8 invariant 6/7).
func Validate(p *CityProfile) error {
	if err := validateCrossFields(p); err != nil {
		return err
	}
	if err := structValidator.Struct(p); err != nil {
		return translateValidationErrors(p.CityKey, err)
	}
	return nil
}

func translateValidationErrors(cityKey string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError("city_profile", cityKey, "", err)
	}
	first := verrs[0]
	return NewValidationError("city_profile", cityKey, first.Namespace(),
		fmt.Errorf("%s", first.Tag()))
}

// validateCrossFields checks invariants that span multiple fields and are
// not expressible as a single struct tag.
func validateCrossFields(p *CityProfile) error {
	if p.Budget.RunCents <= 0 {
		return NewValidationError("city_profile", p.CityKey, "budget.run_cents",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	for _, src := range p.CuratedSources {
		if src.Kind != "" && src.Kind != CuratedSourceStatic && src.Kind != CuratedSourceHeadless {
			return NewValidationError("curated_source", src.URL, "kind",
				fmt.Errorf("%w: %q", ErrInvalidValue, src.Kind))
		}
	}
	for _, em := range p.EntityMappings {
		if em.Domain == "" || em.Name == "" {
			return NewValidationError("entity_mapping", em.Domain, "",
				fmt.Errorf("%w", ErrMissingRequiredField))
		}
	}
	return nil
}
