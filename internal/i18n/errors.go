package i18n

import "errors"

var (
	// ErrNotFound means the key does not resolve to a leaf in the table.
	ErrNotFound = errors.New("i18n: translation not found")
	// ErrNoTable means no locale of the chain has a table.
	ErrNoTable = errors.New("i18n: no translation table for locale chain")
	// ErrInvalidArgument means an argument has the wrong type or is missing.
	ErrInvalidArgument = errors.New("i18n: invalid argument")
	// ErrMissingEnumValue means an enum argument has no mapping.
	ErrMissingEnumValue = errors.New("i18n: missing enum value")
	// ErrMissingPluralCase means neither the selected category nor other exists.
	ErrMissingPluralCase = errors.New("i18n: missing plural case")
	// ErrRecursionDepth means key references nest too deeply.
	ErrRecursionDepth = errors.New("i18n: reference recursion too deep")
	// ErrInvalidOptions means a parameter's formatting options are unusable.
	ErrInvalidOptions = errors.New("i18n: invalid parameter options")
)
