package catalog

import (
	"github.com/binaryburst/entitykit/pkg/service"
	"github.com/google/uuid"
	"go.llib.dev/frameless/pkg/logging"
)

type (
	ProductService = service.Service[int64, Product, ProductRecord, ProductInput, ProductOutput]
	TagService     = service.Service[uuid.UUID, Tag, TagRecord, TagDTO, TagDTO]
)

type Services struct {
	Products ProductService
	Tags     TagService
}

func NewServices(s Store, l *logging.Logger) Services {
	products := service.New[int64, Product, ProductRecord, ProductInput, ProductOutput](s.Products, ProductMapper(SupplierMapper), l)
	products.Validate = ValidateProduct
	tags := service.New[uuid.UUID, Tag, TagRecord, TagDTO, TagDTO](s.Tags, TagMapper, l)
	tags.Validate = ValidateTag
	return Services{Products: products, Tags: tags}
}
