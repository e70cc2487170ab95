package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/mapping"
	"github.com/google/uuid"
)

type Tag struct {
	ID    uuid.UUID
	Label string
}

type TagRecord struct {
	ID    uuid.UUID `json:"id" bson:"id"`
	Label string    `json:"label" bson:"label"`
}

type TagDTO struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

var TagMapper = mapping.Funcs[uuid.UUID, Tag, TagRecord, TagDTO, TagDTO]{
	ToModel:     func(dto TagDTO) Tag { return Tag(dto) },
	ToDTO:       func(m Tag) TagDTO { return TagDTO(m) },
	ToEntity:    func(m Tag) TagRecord { return TagRecord(m) },
	FromEntity:  func(r TagRecord) Tag { return Tag(r) },
	ModelID:     func(m Tag) uuid.UUID { return m.ID },
	EntityID:    func(r TagRecord) uuid.UUID { return r.ID },
	SetEntityID: func(r *TagRecord, id uuid.UUID) { r.ID = id },
}

var errTagLabelRequired = errors.New("tag label is required")

func ValidateTag(_ context.Context, t Tag) error {
	if strings.TrimSpace(t.Label) == "" {
		return errTagLabelRequired
	}
	return nil
}

var TagIDA = crud.IDAccessor[TagRecord, uuid.UUID]{
	Get: func(r TagRecord) uuid.UUID { return r.ID },
	Set: func(r *TagRecord, id uuid.UUID) { r.ID = id },
}

func ParseTagID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}
