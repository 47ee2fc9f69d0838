// Package review records product reviews and keeps each product's aggregate
// rating in step: the review document and the recomputed average commit in
// the same transaction, so readers never see one without the other.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/likha-market/marketplace/internal/docstore"
	"github.com/likha-market/marketplace/internal/domain/catalog"
	domreview "github.com/likha-market/marketplace/internal/domain/review"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/observability/logctx"
)

const (
	serviceName  = "reviews"
	opAddReview  = "review.add"
	opListByProd = "review.list_by_product"
)

var (
	ErrProductNotFound = catalog.ErrNotFound
	ErrStore           = errors.New("review: store failure")
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

type AddReviewInput struct {
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
}

// AddReview inserts the review and folds its rating into the product's
// aggregate in one transaction. Reviewing a product that no longer exists
// fails with ErrProductNotFound.
func (s *Service) AddReview(ctx context.Context, input AddReviewInput) (_ *domreview.Review, err error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", opAddReview),
		observability.F("product_id", input.ProductID),
	)
	start := time.Now()

	entity, err := domreview.New(s.idGenerator.NewID(), input.ProductID, input.UserID, input.UserName, input.Rating, input.Comment)
	if err != nil {
		s.finishOp(opAddReview, start, "error")
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var product catalog.Product
		if err := tx.Get(productKey(input.ProductID), &product); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if err := product.AddRating(entity.Rating); err != nil {
			return err
		}
		tx.Set(reviewKey(entity.ID), entity)
		tx.Set(productKey(input.ProductID), &product)
		return nil
	})
	if err != nil {
		s.finishOp(opAddReview, start, "error")
		if errors.Is(err, ErrProductNotFound) {
			logger.Warn("review_rejected", observability.F("error", err.Error()))
			return nil, err
		}
		logger.Error("review_failed", observability.F("error", err.Error()))
		return nil, wrapStoreError(err)
	}

	s.finishOp(opAddReview, start, "success")
	logger.Info("review_added",
		observability.F("review_id", entity.ID),
		observability.F("rating", entity.Rating),
	)
	return entity, nil
}

// ListByProduct returns a product's reviews, newest first.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]*domreview.Review, error) {
	start := time.Now()

	var reviews []*domreview.Review
	err := s.store.List(ctx, docstore.CollectionReviews, func(raw []byte) error {
		var r domreview.Review
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		if r.ProductID == productID {
			reviews = append(reviews, &r)
		}
		return nil
	})
	if err != nil {
		s.finishOp(opListByProd, start, "error")
		return nil, wrapStoreError(err)
	}

	slices.SortFunc(reviews, func(a, b *domreview.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	s.finishOp(opListByProd, start, "success")
	return reviews, nil
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

func reviewKey(id string) docstore.Key {
	return docstore.Key{Collection: docstore.CollectionReviews, ID: id}
}

func wrapStoreError(err error) error {
	if errors.Is(err, docstore.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
