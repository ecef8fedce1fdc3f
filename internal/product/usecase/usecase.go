package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/auth"
	"github.com/fekuna/omnipos-billing-service/internal/clock"
	"github.com/fekuna/omnipos-billing-service/internal/code"
	"github.com/fekuna/omnipos-billing-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/product"
	"github.com/fekuna/omnipos-billing-service/internal/product/dto"
	"github.com/fekuna/omnipos-billing-service/pkg/cache"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	IndexName    = "products"
	listCacheTTL = 5 * time.Minute
	listCacheKey = "products:list:"
)

// IndexMapping is applied when the products index is first created.
const IndexMapping = `{
	"mappings": {
		"properties": {
			"product_code": { "type": "keyword" },
			"sku": { "type": "keyword" },
			"name": { "type": "text" },
			"description": { "type": "text" },
			"price": { "type": "scaled_float", "scaling_factor": 100 },
			"created_at": { "type": "date" }
		}
	}
}`

type productUseCase struct {
	repo      product.Repository
	codes     code.UseCase
	inventory inventory.UseCase
	cache     *cache.RedisClient
	es        product.Indexer
	clock     clock.Clock
	logger    logger.ZapLogger
}

// NewProductUseCase wires the catalogue. cache and es may be nil.
func NewProductUseCase(
	repo product.Repository,
	codes code.UseCase,
	inv inventory.UseCase,
	cache *cache.RedisClient,
	es product.Indexer,
	clk clock.Clock,
	log logger.ZapLogger,
) product.UseCase {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &productUseCase{
		repo:      repo,
		codes:     codes,
		inventory: inv,
		cache:     cache,
		es:        es,
		clock:     clk,
		logger:    log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("product name is required")
	}
	if input.OpeningStock < 0 {
		return nil, fmt.Errorf("opening stock %d: %w", input.OpeningStock, model.ErrInvalidQuantity)
	}

	now := uc.clock.Now()
	p := &model.Product{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		SKU:         optional(input.SKU),
		Name:        input.Name,
		Description: optional(input.Description),
		Price:       input.Price,
		TaxPercent:  nullDecimal(input.TaxPercent),
		StockQty:    0,
	}

	_, err := uc.codes.CreateWithCode(ctx, code.Products, func(ctx context.Context, c string) error {
		p.ProductCode = &c
		return uc.repo.CreateProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	uc.invalidateListCache(context.WithoutCancel(ctx))

	if input.OpeningStock > 0 {
		_, err := uc.inventory.RecordMovement(ctx, &invdto.RecordMovementInput{
			ProductID:     p.ID,
			Change:        input.OpeningStock,
			Reason:        model.MovementPurchase,
			ReferenceType: "opening_balance",
			ReferenceID:   p.ID,
			UnitCost:      nullDecimal(input.UnitCost),
			CreatedBy:     uc.actor(ctx, input.CreatedBy),
		})
		if err != nil {
			uc.logger.Error("product created without opening stock",
				zap.String("product_id", p.ID),
				zap.Int("opening_stock", input.OpeningStock),
				zap.Error(err),
			)
			return p, fmt.Errorf("record opening stock: %w", err)
		}
		p.StockQty = input.OpeningStock
	}

	go uc.syncToElastic(context.WithoutCancel(ctx), p)

	return p, nil
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := uc.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

type cachedList struct {
	Products []model.Product
	Count    int
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	if filters == nil {
		filters = &dto.ProductFilters{}
	}

	cacheKey := ""
	if uc.cache != nil {
		if key, err := generateCacheKey(filters); err == nil {
			cacheKey = key
			if val, err := uc.cache.Client.Get(ctx, cacheKey).Bytes(); err == nil {
				var hit cachedList
				if err := json.Unmarshal(val, &hit); err == nil {
					return hit.Products, hit.Count, nil
				}
			}
		}
	}

	products, count, err := uc.repo.ListProducts(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(cachedList{Products: products, Count: count}); err == nil {
			if err := uc.cache.Client.Set(ctx, cacheKey, data, listCacheTTL).Err(); err != nil {
				uc.logger.Warn("failed to cache product list", zap.Error(err))
			}
		}
	}
	return products, count, nil
}

func (uc *productUseCase) RecordPurchase(ctx context.Context, input *dto.RecordPurchaseInput) (*model.StockMovement, error) {
	if input.Qty <= 0 {
		return nil, fmt.Errorf("purchase qty %d: %w", input.Qty, model.ErrInvalidQuantity)
	}
	if _, err := uc.GetProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	movement, err := uc.inventory.RecordMovement(ctx, &invdto.RecordMovementInput{
		ProductID:     input.ProductID,
		Change:        input.Qty,
		Reason:        model.MovementPurchase,
		ReferenceType: "purchase",
		ReferenceID:   input.SupplierID,
		UnitCost:      nullDecimal(input.UnitCost),
		CreatedBy:     uc.actor(ctx, input.CreatedBy),
	})
	if movement != nil {
		uc.invalidateListCache(context.WithoutCancel(ctx))
	}
	return movement, err
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil {
		return
	}
	if err := uc.es.Index(ctx, IndexName, p.ID, p); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (uc *productUseCase) invalidateListCache(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	iter := uc.cache.Client.Scan(ctx, 0, listCacheKey+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		uc.logger.Warn("failed to scan product list cache", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		uc.cache.Client.Del(ctx, keys...)
	}
}

func (uc *productUseCase) actor(ctx context.Context, createdBy string) string {
	if createdBy != "" {
		return createdBy
	}
	return auth.ActorFromContext(ctx)
}

func generateCacheKey(filters *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%x", listCacheKey, md5.Sum(data)), nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
