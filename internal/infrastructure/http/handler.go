// Package httptransport exposes the marketplace over HTTP. Handlers decode,
// delegate to the application services, and translate domain errors to
// status codes; no business rules live here.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appcatalog "github.com/likha-market/marketplace/internal/application/catalog"
	"github.com/likha-market/marketplace/internal/application/fulfillment"
	"github.com/likha-market/marketplace/internal/application/ledger"
	appreview "github.com/likha-market/marketplace/internal/application/review"
	"github.com/likha-market/marketplace/internal/docstore"
	domcatalog "github.com/likha-market/marketplace/internal/domain/catalog"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
	domreview "github.com/likha-market/marketplace/internal/domain/review"
	"github.com/likha-market/marketplace/internal/observability"
)

type Handler struct {
	ledger      *ledger.Ledger
	fulfillment *fulfillment.Service
	reviews     *appreview.Service
	catalog     *appcatalog.Service
	tel         observability.Observability
}

func NewHandler(
	l *ledger.Ledger,
	f *fulfillment.Service,
	rv *appreview.Service,
	c *appcatalog.Service,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{ledger: l, fulfillment: f, reviews: rv, catalog: c, tel: tel}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(ObservabilityMiddleware(h.tel))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleCreateOrder)
		r.Get("/", h.handleListOrders)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.handleGetOrder)
			r.Post("/cancel-request", h.handleRequestCancellation)
			r.Post("/cancel-approve", h.handleApproveCancellation)
			r.Post("/cancel-reject", h.handleRejectCancellation)
			r.Post("/ship", h.handleShip)
			r.Post("/deliver", h.handleMarkDelivered)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.handleCreateProduct)
		r.Get("/", h.handleListProducts)
		r.Route("/{productID}", func(r chi.Router) {
			r.Get("/", h.handleGetProduct)
			r.Patch("/", h.handleUpdateProduct)
			r.Delete("/", h.handleDeleteProduct)
			r.Post("/reviews", h.handleAddReview)
			r.Get("/reviews", h.handleListReviews)
		})
	})

	return r
}

type orderItemPayload struct {
	ProductID     string `json:"product_id"`
	VariationID   string `json:"variation_id,omitempty"`
	VariationName string `json:"variation_name,omitempty"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	SellerID      string `json:"seller_id"`
	UnitPrice     int64  `json:"unit_price"`
	Quantity      int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	CustomerName    string             `json:"customer_name"`
	Items           []orderItemPayload `json:"items"`
	TotalAmount     int64              `json:"total_amount"`
	PaymentMethod   string             `json:"payment_method"`
	DeliveryMethod  string             `json:"delivery_method"`
	ShippingAddress *domorder.Address  `json:"shipping_address,omitempty"`
}

type createOrderResponse struct {
	OrderID      string          `json:"order_id"`
	Status       domorder.Status `json:"status"`
	ClampedUnits int             `json:"clamped_units,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]ledger.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, ledger.CartLine{
			ProductID:     item.ProductID,
			VariationID:   item.VariationID,
			VariationName: item.VariationName,
			Name:          item.Name,
			Image:         item.Image,
			SellerID:      item.SellerID,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
		})
	}

	result, err := h.ledger.CreateOrder(r.Context(), ledger.CreateOrderInput{
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		Lines:           lines,
		TotalAmount:     req.TotalAmount,
		PaymentMethod:   domorder.PaymentMethod(req.PaymentMethod),
		DeliveryMethod:  domorder.DeliveryMethod(req.DeliveryMethod),
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:      result.OrderID,
		Status:       result.Status,
		ClampedUnits: result.ClampedUnits,
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	sellerID := r.URL.Query().Get("seller_id")

	var (
		orders []*domorder.Order
		err    error
	)
	switch {
	case customerID != "":
		orders, err = h.ledger.ListByCustomer(r.Context(), customerID)
	case sellerID != "":
		orders, err = h.ledger.ListBySeller(r.Context(), sellerID)
	default:
		writeError(w, http.StatusBadRequest, errors.New("customer_id or seller_id query parameter is required"))
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type cancelRequestPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRequestCancellation(w http.ResponseWriter, r *http.Request) {
	var req cancelRequestPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.ledger.RequestCancellation(r.Context(), chi.URLParam(r, "orderID"), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApproveCancellation(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ApproveCancellation(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRejectCancellation(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RejectCancellation(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shipRequest struct {
	Courier        string `json:"courier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type shipResponse struct {
	TrackingNumber string `json:"tracking_number"`
	Courier        string `json:"courier"`
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := h.fulfillment.Ship(r.Context(), fulfillment.ShipInput{
		OrderID:        chi.URLParam(r, "orderID"),
		Courier:        req.Courier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipResponse{
		TrackingNumber: result.TrackingNumber,
		Courier:        result.Courier,
	})
}

func (h *Handler) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	if err := h.fulfillment.MarkDelivered(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createProductRequest struct {
	SellerID    string                 `json:"seller_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category"`
	Price       int64                  `json:"price"`
	Image       string                 `json:"image,omitempty"`
	Stock       int                    `json:"stock"`
	Variations  []domcatalog.Variation `json:"variations,omitempty"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), appcatalog.CreateProductInput{
		SellerID:    req.SellerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    domcatalog.Category(req.Category),
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
		Variations:  req.Variations,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("seller_id")
	category := r.URL.Query().Get("category")

	var (
		products []*domcatalog.Product
		err      error
	)
	if sellerID != "" {
		products, err = h.catalog.ListBySeller(r.Context(), sellerID)
	} else {
		products, err = h.catalog.ListProducts(r.Context(), domcatalog.Category(category))
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type updateProductRequest struct {
	Name        *string                 `json:"name,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Category    *domcatalog.Category    `json:"category,omitempty"`
	Price       *int64                  `json:"price,omitempty"`
	Image       *string                 `json:"image,omitempty"`
	Stock       *int                    `json:"stock,omitempty"`
	Variations  *[]domcatalog.Variation `json:"variations,omitempty"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), domcatalog.Update{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Image:       req.Image,
		Stock:       req.Stock,
		Variations:  req.Variations,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addReviewRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

func (h *Handler) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req addReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	review, err := h.reviews.AddReview(r.Context(), appreview.AddReviewInput{
		ProductID: chi.URLParam(r, "productID"),
		UserID:    req.UserID,
		UserName:  req.UserName,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListByProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, docstore.ErrConflict),
		errors.Is(err, domorder.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domcatalog.ErrInsufficientStock),
		errors.Is(err, domcatalog.ErrInvalidName),
		errors.Is(err, domcatalog.ErrInvalidPrice),
		errors.Is(err, domcatalog.ErrInvalidStock),
		errors.Is(err, domcatalog.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInvalidRating),
		errors.Is(err, domorder.ErrEmptyCustomer),
		errors.Is(err, domorder.ErrEmptyItems),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidAmount),
		errors.Is(err, domorder.ErrEmptyReason),
		errors.Is(err, domorder.ErrInvalidPaymentMethod),
		errors.Is(err, domorder.ErrInvalidDeliveryMethod),
		errors.Is(err, domreview.ErrInvalidRating),
		errors.Is(err, domreview.ErrEmptyProduct),
		errors.Is(err, domreview.ErrEmptyUser):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
