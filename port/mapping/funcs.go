package mapping

import "fmt"

// Funcs is a Mapper implementation built from plain functions,
// so a resource doesn't need to declare its own mapper type.
type Funcs[ID comparable, M, E, I, O any] struct {
	// ToModel maps an input DTO into a model.
	ToModel func(I) M
	// ToDTO maps a model into an output DTO.
	ToDTO func(M) O
	// ToEntity maps a model into a fresh storage entity.
	ToEntity func(M) E
	// FromEntity maps a storage entity into a model.
	FromEntity func(E) M
	// Apply [optional] copies the model's mutable fields onto an existing entity.
	//
	// default: ToEntity(model) with the existing entity's ID kept, which requires EntityID and SetEntityID.
	Apply func(E, M) E
	// ModelID returns the model's identifier, the zero value meaning "not yet created".
	ModelID func(M) ID
	// EntityID [optional] returns the entity's identifier.
	EntityID func(E) ID
	// SetEntityID [optional] sets the entity's identifier.
	SetEntityID func(*E, ID)
	// EntityDTO [optional] maps a storage entity directly into an output DTO.
	//
	// default: ToDTO(FromEntity(ent))
	EntityDTO func(E) O
}

func (m Funcs[ID, M, E, I, O]) DTOToModel(dto I) M { return m.ToModel(dto) }

func (m Funcs[ID, M, E, I, O]) ModelToDTO(model M) O { return m.ToDTO(model) }

func (m Funcs[ID, M, E, I, O]) ModelToEntity(model M) E { return m.ToEntity(model) }

func (m Funcs[ID, M, E, I, O]) EntityToModel(ent E) M { return m.FromEntity(ent) }

func (m Funcs[ID, M, E, I, O]) ApplyModel(ent E, model M) E {
	if m.Apply != nil {
		return m.Apply(ent, model)
	}
	if m.EntityID == nil || m.SetEntityID == nil {
		panic(fmt.Sprintf("mapping.Funcs[%T]: Apply or EntityID and SetEntityID must be provided", *new(E)))
	}
	id := m.EntityID(ent)
	updated := m.ToEntity(model)
	m.SetEntityID(&updated, id)
	return updated
}

func (m Funcs[ID, M, E, I, O]) ExtractID(model M) (ID, bool) {
	var zero ID
	id := m.ModelID(model)
	return id, id != zero
}

func (m Funcs[ID, M, E, I, O]) EntityToDTO(ent E) O {
	if m.EntityDTO != nil {
		return m.EntityDTO(ent)
	}
	return m.ToDTO(m.FromEntity(ent))
}

// PartialFuncs is a PartialMapper implementation built from plain functions.
type PartialFuncs[M, E, I, O any] struct {
	ToModel    func(I) M
	ToDTO      func(M) O
	ToEntity   func(M) E
	FromEntity func(E) M
	// Apply [optional] updates an existing embedded entity from the model.
	//
	// default: ToEntity(model), since a partial has no identity to preserve.
	Apply func(E, M) E
	// EntityDTO [optional]
	//
	// default: ToDTO(FromEntity(ent))
	EntityDTO func(E) O
}

func (m PartialFuncs[M, E, I, O]) DTOToModel(dto I) M { return m.ToModel(dto) }

func (m PartialFuncs[M, E, I, O]) ModelToDTO(model M) O { return m.ToDTO(model) }

func (m PartialFuncs[M, E, I, O]) ModelToEntity(model M) E { return m.ToEntity(model) }

func (m PartialFuncs[M, E, I, O]) EntityToModel(ent E) M { return m.FromEntity(ent) }

func (m PartialFuncs[M, E, I, O]) ApplyModel(ent E, model M) E {
	if m.Apply != nil {
		return m.Apply(ent, model)
	}
	return m.ToEntity(model)
}

func (m PartialFuncs[M, E, I, O]) EntityToDTO(ent E) O {
	if m.EntityDTO != nil {
		return m.EntityDTO(ent)
	}
	return m.ToDTO(m.FromEntity(ent))
}
