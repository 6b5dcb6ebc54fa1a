package memutils

import "github.com/cockroachdb/errors"

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// ValidateAll runs Validate on every object and combines any failures into a single error
func ValidateAll(validatables ...Validatable) error {
	var errs []error
	for _, v := range validatables {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
