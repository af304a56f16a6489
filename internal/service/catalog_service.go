package service

import (
	"context"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ProductCache is a read-through cache of the public product lookup.
// Implementations are best effort: a miss or a cache error falls back to the
// database.
//
// Writes are generation-checked: the caller reads Generation before loading
// the product and passes it to Set, which stores nothing if an Invalidate
// happened in between. A lookup racing a sale can then never cache the
// quantity from before the sale.
type ProductCache interface {
	Get(ctx context.Context, id uuid.UUID) (*dto.ProductLookupResponse, bool)
	Generation(ctx context.Context, id uuid.UUID) (int64, bool)
	Set(ctx context.Context, p *dto.ProductLookupResponse, generation int64)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type CatalogService interface {
	Lookup(ctx context.Context, productID uuid.UUID) (*dto.ProductLookupResponse, error)
}

type catalogService struct {
	products repository.ProductRepository
	cache    ProductCache
}

// NewCatalogService builds the lookup service; cache may be nil.
func NewCatalogService(products repository.ProductRepository, cache ProductCache) CatalogService {
	return &catalogService{products: products, cache: cache}
}

func (s *catalogService) Lookup(ctx context.Context, productID uuid.UUID) (*dto.ProductLookupResponse, error) {
	if s.cache != nil {
		if hit, ok := s.cache.Get(ctx, productID); ok {
			return hit, nil
		}
	}
	var (
		gen   int64
		genOK bool
	)
	if s.cache != nil {
		gen, genOK = s.cache.Generation(ctx, productID)
	}
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, apperror.FromDB(err, "product")
	}
	resp := productToLookup(p)
	if genOK {
		s.cache.Set(ctx, resp, gen)
	}
	log.Debug().Str("product_id", productID.String()).Msg("catalog cache miss")
	return resp, nil
}

func productToLookup(p *model.Product) *dto.ProductLookupResponse {
	resp := &dto.ProductLookupResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		TypeID:          p.TypeID.String(),
		Price:           p.Price,
		Quantity:        p.Quantity,
		StockControlled: p.StockControlled,
		Active:          p.Active,
	}
	if p.Type != nil {
		resp.TypeName = p.Type.Name
	}
	return resp
}
