// Package catalog holds the resources served by entitykit: products with their supplier, and tags.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/mapping"
)

type Product struct {
	ID       int64
	Name     string
	Supplier Supplier
}

// Supplier is embedded into a Product and has no identity of its own.
type Supplier struct {
	Name string
}

// ProductRecord is the stored shape of a Product.
type ProductRecord struct {
	ID       int64          `json:"id" bson:"id"`
	Name     string         `json:"name" bson:"name"`
	Supplier SupplierRecord `json:"supplier" bson:"supplier"`
}

type SupplierRecord struct {
	Name string `json:"name" bson:"name"`
}

type ProductInput struct {
	ID       int64       `json:"id,omitempty"`
	Name     string      `json:"name"`
	Supplier SupplierDTO `json:"supplier"`
}

type ProductOutput struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Supplier SupplierDTO `json:"supplier"`
}

type SupplierDTO struct {
	Name string `json:"name"`
}

var SupplierMapper = mapping.PartialFuncs[Supplier, SupplierRecord, SupplierDTO, SupplierDTO]{
	ToModel:    func(dto SupplierDTO) Supplier { return Supplier(dto) },
	ToDTO:      func(m Supplier) SupplierDTO { return SupplierDTO(m) },
	ToEntity:   func(m Supplier) SupplierRecord { return SupplierRecord(m) },
	FromEntity: func(r SupplierRecord) Supplier { return Supplier(r) },
}

// ProductMapper delegates the supplier field to a PartialMapper.
func ProductMapper(supplier mapping.PartialMapper[Supplier, SupplierRecord, SupplierDTO, SupplierDTO]) mapping.Funcs[int64, Product, ProductRecord, ProductInput, ProductOutput] {
	return mapping.Funcs[int64, Product, ProductRecord, ProductInput, ProductOutput]{
		ToModel: func(in ProductInput) Product {
			return Product{ID: in.ID, Name: in.Name, Supplier: supplier.DTOToModel(in.Supplier)}
		},
		ToDTO: func(m Product) ProductOutput {
			return ProductOutput{ID: m.ID, Name: m.Name, Supplier: supplier.ModelToDTO(m.Supplier)}
		},
		ToEntity: func(m Product) ProductRecord {
			return ProductRecord{ID: m.ID, Name: m.Name, Supplier: supplier.ModelToEntity(m.Supplier)}
		},
		FromEntity: func(r ProductRecord) Product {
			return Product{ID: r.ID, Name: r.Name, Supplier: supplier.EntityToModel(r.Supplier)}
		},
		Apply: func(r ProductRecord, m Product) ProductRecord {
			r.Name = m.Name
			r.Supplier = supplier.ApplyModel(r.Supplier, m.Supplier)
			return r
		},
		ModelID: func(m Product) int64 { return m.ID },
		EntityDTO: func(r ProductRecord) ProductOutput {
			return ProductOutput{ID: r.ID, Name: r.Name, Supplier: supplier.EntityToDTO(r.Supplier)}
		},
	}
}

var errProductNameRequired = errors.New("product name is required")

func ValidateProduct(_ context.Context, p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errProductNameRequired
	}
	return nil
}

var ProductIDA = crud.IDAccessor[ProductRecord, int64]{
	Get: func(r ProductRecord) int64 { return r.ID },
	Set: func(r *ProductRecord, id int64) { r.ID = id },
}

func ParseProductID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
