package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInvalidName       = errors.New("catalog: name is required")
	ErrInvalidPrice      = errors.New("catalog: price must be zero or greater")
	ErrInvalidStock      = errors.New("catalog: stock must be zero or greater")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidRating     = errors.New("catalog: rating must be between 1 and 5")
	ErrVariationNotFound = errors.New("catalog: variation not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

type Category string

const (
	CategoryWeaving   Category = "Weaving"
	CategoryPottery   Category = "Pottery"
	CategoryDelicacy  Category = "Delicacy"
	CategoryAccessory Category = "Accessory"
)

// Variation is one purchasable option of a product with its own price and
// stock. Variation IDs are unique within their product.
type Variation struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

// Product is a seller listing. When variations exist, Stock is the aggregate
// sum over variation stocks and must be recomputed after every stock change.
type Product struct {
	ID          string      `json:"id"`
	SellerID    string      `json:"seller_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    Category    `json:"category"`
	Price       int64       `json:"price"`
	Image       string      `json:"image,omitempty"`
	Rating      float64     `json:"rating"`
	ReviewCount int         `json:"review_count"`
	Stock       int         `json:"stock"`
	Variations  []Variation `json:"variations,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func NewProduct(id, sellerID, name string, category Category, price int64, stock int, variations []Variation) (*Product, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	for _, v := range variations {
		if v.Stock < 0 {
			return nil, ErrInvalidStock
		}
		if v.Price < 0 {
			return nil, ErrInvalidPrice
		}
	}

	now := time.Now().UTC()
	p := &Product{
		ID:         id,
		SellerID:   sellerID,
		Name:       name,
		Category:   category,
		Price:      price,
		Stock:      stock,
		Variations: variations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.recalcStock()
	return p, nil
}

// Reserve removes up to qty units from the product, from the named variation
// when variationID is non-empty. With clamp true the deduction stops at zero
// and the short amount is returned; with clamp false a short reservation
// fails with ErrInsufficientStock and leaves the product untouched.
func (p *Product) Reserve(variationID string, qty int, clamp bool) (clamped int, err error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	if variationID != "" && len(p.Variations) > 0 {
		i := p.variationIndex(variationID)
		if i < 0 {
			return 0, ErrVariationNotFound
		}
		short := qty - p.Variations[i].Stock
		if short > 0 && !clamp {
			return 0, ErrInsufficientStock
		}
		p.Variations[i].Stock = max(0, p.Variations[i].Stock-qty)
		p.recalcStock()
		p.touch()
		return max(0, short), nil
	}

	short := qty - p.Stock
	if short > 0 && !clamp {
		return 0, ErrInsufficientStock
	}
	p.Stock = max(0, p.Stock-qty)
	p.touch()
	return max(0, short), nil
}

// Restore adds qty units back, to the named variation when variationID is
// non-empty and still present. Quantities restored to a variation flow into
// the aggregate via recalcStock.
func (p *Product) Restore(variationID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	if variationID != "" && len(p.Variations) > 0 {
		if i := p.variationIndex(variationID); i >= 0 {
			p.Variations[i].Stock += qty
			p.recalcStock()
			p.touch()
			return nil
		}
	}

	p.Stock += qty
	p.touch()
	return nil
}

// AddRating folds one review rating into the running aggregate, keeping one
// decimal of precision as the storefront displays it.
func (p *Product) AddRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	count := p.ReviewCount + 1
	avg := (p.Rating*float64(p.ReviewCount) + float64(rating)) / float64(count)
	p.Rating = roundRating(avg)
	p.ReviewCount = count
	p.touch()
	return nil
}

func (p *Product) HasVariations() bool { return len(p.Variations) > 0 }

func (p *Product) variationIndex(variationID string) int {
	for i := range p.Variations {
		if p.Variations[i].ID == variationID {
			return i
		}
	}
	return -1
}

// Update carries the editable product fields. Nil pointers leave the
// current value in place.
type Update struct {
	Name        *string
	Description *string
	Category    *Category
	Price       *int64
	Image       *string
	Stock       *int
	Variations  *[]Variation
}

// ApplyUpdate validates and applies the non-nil fields of u. Rating and
// review count are aggregate-owned and cannot be set here.
func (p *Product) ApplyUpdate(u Update) error {
	if u.Name != nil && *u.Name == "" {
		return ErrInvalidName
	}
	if u.Price != nil && *u.Price < 0 {
		return ErrInvalidPrice
	}
	if u.Stock != nil && *u.Stock < 0 {
		return ErrInvalidStock
	}
	if u.Variations != nil {
		for _, v := range *u.Variations {
			if v.Stock < 0 {
				return ErrInvalidStock
			}
			if v.Price < 0 {
				return ErrInvalidPrice
			}
		}
	}

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Variations != nil {
		p.Variations = *u.Variations
	}
	p.recalcStock()
	p.touch()
	return nil
}

// recalcStock restores the invariant stock == sum(variation stocks) whenever
// variations exist.
func (p *Product) recalcStock() {
	if len(p.Variations) == 0 {
		return
	}
	total := 0
	for _, v := range p.Variations {
		total += v.Stock
	}
	p.Stock = total
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func roundRating(r float64) float64 {
	return float64(int(r*10+0.5)) / 10
}
