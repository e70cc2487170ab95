package crud

import "reflect"

// TypeName returns the short type name of ENT, used in error messages and log fields.
func TypeName[ENT any]() string {
	typ := reflect.TypeFor[ENT]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if name := typ.Name(); name != "" {
		return name
	}
	return typ.String()
}
