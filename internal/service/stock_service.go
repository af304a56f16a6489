package service

import (
	"context"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type StockService interface {
	// Receive records goods arriving (entrada).
	Receive(ctx context.Context, actorID, productID uuid.UUID, req dto.StockEntryRequest) (*dto.StockMovementResponse, error)
	// Adjust records an inventory correction (ajuste) in either direction.
	Adjust(ctx context.Context, actorID, productID uuid.UUID, req dto.StockAdjustRequest) (*dto.StockMovementResponse, error)
	ListMovements(ctx context.Context, productID uuid.UUID, filter dto.StockMovementFilter) (*dto.StockMovementListResponse, error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*dto.StockReconcileResponse, error)
	LowStock(ctx context.Context) ([]dto.LowStockItem, error)
}

type stockService struct {
	ledger   *Ledger
	products repository.ProductRepository
	stock    repository.StockMovementRepository
	cache    ProductCache
}

func NewStockService(
	ledger *Ledger,
	products repository.ProductRepository,
	stock repository.StockMovementRepository,
	cache ProductCache,
) StockService {
	return &stockService{ledger: ledger, products: products, stock: stock, cache: cache}
}

func (s *stockService) Receive(ctx context.Context, actorID, productID uuid.UUID, req dto.StockEntryRequest) (*dto.StockMovementResponse, error) {
	return s.append(ctx, StockInput{
		ProductID: productID,
		Kind:      model.StockEntry,
		Sign:      1,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		ActorID:   actorID,
	})
}

func (s *stockService) Adjust(ctx context.Context, actorID, productID uuid.UUID, req dto.StockAdjustRequest) (*dto.StockMovementResponse, error) {
	return s.append(ctx, StockInput{
		ProductID: productID,
		Kind:      model.StockAdjust,
		Sign:      req.Sign,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		ActorID:   actorID,
	})
}

func (s *stockService) append(ctx context.Context, in StockInput) (*dto.StockMovementResponse, error) {
	var mov *model.StockMovement
	err := runTx(ctx, s.products.DB(), "product", func(tx *gorm.DB) error {
		var err error
		mov, err = s.ledger.AppendStockMovementTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, in.ProductID)
	}
	log.Info().
		Str("product_id", in.ProductID.String()).
		Str("kind", in.Kind).
		Int("quantity", in.Quantity).
		Int("stock_after", mov.StockAfter).
		Msg("stock movement appended")
	return stockMovementToResponse(mov), nil
}

func (s *stockService) ListMovements(ctx context.Context, productID uuid.UUID, filter dto.StockMovementFilter) (*dto.StockMovementListResponse, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, apperror.FromDB(err, "product")
	}
	movs, total, err := s.stock.List(ctx, repository.StockMovementFilter{
		ProductID: &productID,
		Kind:      filter.Kind,
		Page:      filter.Page,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	resp := &dto.StockMovementListResponse{
		Data:  make([]dto.StockMovementResponse, 0, len(movs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range movs {
		resp.Data = append(resp.Data, *stockMovementToResponse(&movs[i]))
	}
	return resp, nil
}

func (s *stockService) Reconcile(ctx context.Context, productID uuid.UUID) (*dto.StockReconcileResponse, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, apperror.FromDB(err, "product")
	}
	sum, err := s.stock.SignedSum(ctx, productID)
	if err != nil {
		return nil, err
	}
	if sum != p.Quantity {
		log.Error().
			Str("product_id", productID.String()).
			Int("projection", p.Quantity).
			Int("ledger_sum", sum).
			Msg("stock projection drift")
	}
	return &dto.StockReconcileResponse{
		ProductID:  productID.String(),
		Projection: p.Quantity,
		LedgerSum:  sum,
		Consistent: sum == p.Quantity,
	}, nil
}

func (s *stockService) LowStock(ctx context.Context) ([]dto.LowStockItem, error) {
	products, err := s.products.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.LowStockItem, 0, len(products))
	for _, p := range products {
		items = append(items, dto.LowStockItem{
			ProductID:   p.ID.String(),
			Name:        p.Name,
			Quantity:    p.Quantity,
			MinQuantity: p.MinQuantity,
			Shortfall:   p.MinQuantity - p.Quantity,
		})
	}
	return items, nil
}

func stockMovementToResponse(m *model.StockMovement) *dto.StockMovementResponse {
	return &dto.StockMovementResponse{
		ID:          m.ID.String(),
		ProductID:   m.ProductID.String(),
		Kind:        m.Kind,
		Sign:        m.Sign,
		Quantity:    m.Quantity,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		ActorID:     m.ActorID.String(),
		Reason:      m.Reason,
		SaleID:      uuidString(m.SaleID),
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
