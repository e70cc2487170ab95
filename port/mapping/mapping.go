// Package mapping is the single source of truth for shape conversion between
// transport DTOs, business models and storage entities.
//
// A resource implements Mapper once. Embedded sub-objects get their own PartialMapper,
// and the parent's conversion functions call it explicitly for the embedded field.
package mapping

// Mapper converts between the five shapes of a resource.
//
//	ID: identifier type
//	M:  model
//	E:  storage entity
//	I:  input DTO
//	O:  output DTO
type Mapper[ID comparable, M, E, I, O any] interface {
	DTOToModel(dto I) M
	ModelToDTO(model M) O
	// ModelToEntity is used only for fresh records.
	// When the model has no ID, the entity's ID is left unset for the store to assign.
	ModelToEntity(model M) E
	EntityToModel(ent E) M
	// ApplyModel updates the mutable fields of an existing entity from the model.
	// The entity's identifier and any field not represented in the model are preserved.
	ApplyModel(ent E, model M) E
	// ExtractID returns the model's ID, or false when the model represents a not-yet-created record.
	ExtractID(model M) (ID, bool)
	EntityToDTO(ent E) O
}

// PartialMapper converts the shapes of an embedded sub-object.
// Partials have no identifier, so there is no ExtractID.
type PartialMapper[M, E, I, O any] interface {
	DTOToModel(dto I) M
	ModelToDTO(model M) O
	ModelToEntity(model M) E
	EntityToModel(ent E) M
	ApplyModel(ent E, model M) E
	EntityToDTO(ent E) O
}

// Slice maps every element of vs with fn.
func Slice[From, To any](vs []From, fn func(From) To) []To {
	out := make([]To, 0, len(vs))
	for _, v := range vs {
		out = append(out, fn(v))
	}
	return out
}
