// Package catalog manages the product listings sellers maintain: creation,
// edits, deletion, and the browse queries the storefront renders.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/likha-market/marketplace/internal/docstore"
	domcatalog "github.com/likha-market/marketplace/internal/domain/catalog"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/observability/logctx"
)

const (
	serviceName = "catalog"
	opCreate    = "catalog.create_product"
	opUpdate    = "catalog.update_product"
	opDelete    = "catalog.delete_product"
	opGet       = "catalog.get_product"
	opList      = "catalog.list_products"
)

var (
	ErrNotFound = domcatalog.ErrNotFound
	ErrStore    = errors.New("catalog: store failure")
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store       docstore.Store
	idGenerator IDGenerator

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func New(store docstore.Store, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Service{
		store:        store,
		idGenerator:  idGen,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

type CreateProductInput struct {
	SellerID    string
	Name        string
	Description string
	Category    domcatalog.Category
	Price       int64
	Image       string
	Stock       int
	Variations  []domcatalog.Variation
}

func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*domcatalog.Product, error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", opCreate))
	start := time.Now()

	product, err := domcatalog.NewProduct(s.idGenerator.NewID(), input.SellerID, input.Name,
		input.Category, input.Price, input.Stock, input.Variations)
	if err != nil {
		s.finishOp(opCreate, start, "error")
		return nil, err
	}
	product.Description = input.Description
	product.Image = input.Image

	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		tx.Set(productKey(product.ID), product)
		return nil
	})
	if err != nil {
		s.finishOp(opCreate, start, "error")
		logger.Error("product_create_failed", observability.F("error", err.Error()))
		return nil, wrapStoreError(err)
	}

	s.finishOp(opCreate, start, "success")
	logger.Info("product_created",
		observability.F("product_id", product.ID),
		observability.F("seller_id", product.SellerID),
	)
	return product, nil
}

// UpdateProduct applies the non-nil fields of update inside a transaction so
// concurrent stock movements are never overwritten blindly.
func (s *Service) UpdateProduct(ctx context.Context, productID string, update domcatalog.Update) (*domcatalog.Product, error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", opUpdate),
		observability.F("product_id", productID),
	)
	start := time.Now()

	var product domcatalog.Product
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		product = domcatalog.Product{}
		if err := tx.Get(productKey(productID), &product); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := product.ApplyUpdate(update); err != nil {
			return err
		}
		tx.Set(productKey(productID), &product)
		return nil
	})
	if err != nil {
		s.finishOp(opUpdate, start, "error")
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if errors.Is(err, domcatalog.ErrInvalidName) ||
			errors.Is(err, domcatalog.ErrInvalidPrice) ||
			errors.Is(err, domcatalog.ErrInvalidStock) {
			return nil, err
		}
		logger.Error("product_update_failed", observability.F("error", err.Error()))
		return nil, wrapStoreError(err)
	}

	s.finishOp(opUpdate, start, "success")
	logger.Info("product_updated")
	return &product, nil
}

// DeleteProduct removes the listing. Orders keep their item snapshots; the
// ledger tolerates the missing product on later cancellations.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", opDelete),
		observability.F("product_id", productID),
	)
	start := time.Now()

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var product domcatalog.Product
		if err := tx.Get(productKey(productID), &product); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		tx.Delete(productKey(productID))
		return nil
	})
	if err != nil {
		s.finishOp(opDelete, start, "error")
		if errors.Is(err, ErrNotFound) {
			return err
		}
		logger.Error("product_delete_failed", observability.F("error", err.Error()))
		return wrapStoreError(err)
	}

	s.finishOp(opDelete, start, "success")
	logger.Info("product_deleted")
	return nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*domcatalog.Product, error) {
	start := time.Now()

	var product domcatalog.Product
	err := s.store.Get(ctx, productKey(productID), &product)
	if err != nil {
		s.finishOp(opGet, start, "error")
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapStoreError(err)
	}

	s.finishOp(opGet, start, "success")
	return &product, nil
}

// ListProducts returns every listing, newest first. An empty category means
// no category filter.
func (s *Service) ListProducts(ctx context.Context, category domcatalog.Category) ([]*domcatalog.Product, error) {
	return s.list(ctx, func(p *domcatalog.Product) bool {
		return category == "" || p.Category == category
	})
}

// ListBySeller returns one seller's listings, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]*domcatalog.Product, error) {
	return s.list(ctx, func(p *domcatalog.Product) bool {
		return p.SellerID == sellerID
	})
}

func (s *Service) list(ctx context.Context, keep func(*domcatalog.Product) bool) ([]*domcatalog.Product, error) {
	start := time.Now()

	var products []*domcatalog.Product
	err := s.store.List(ctx, docstore.CollectionProducts, func(raw []byte) error {
		var p domcatalog.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if keep(&p) {
			products = append(products, &p)
		}
		return nil
	})
	if err != nil {
		s.finishOp(opList, start, "error")
		return nil, wrapStoreError(err)
	}

	slices.SortFunc(products, func(a, b *domcatalog.Product) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	s.finishOp(opList, start, "success")
	return products, nil
}

func (s *Service) finishOp(op string, start time.Time, outcome string) {
	s.reqCounter.Add(1,
		observability.L("use_case", op),
		observability.L("outcome", outcome),
	)
	s.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("use_case", op),
	)
}

func productKey(id string) docstore.Key {
	return docstore.Key{Collection: docstore.CollectionProducts, ID: id}
}

func wrapStoreError(err error) error {
	if errors.Is(err, docstore.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
