package review

import (
	"errors"
	"time"
)

var (
	ErrInvalidRating = errors.New("review: rating must be between 1 and 5")
	ErrEmptyProduct  = errors.New("review: product id is required")
	ErrEmptyUser     = errors.New("review: user id is required")
)

// Review is one customer rating of a product. The product's aggregate
// rating and review count are maintained alongside in the same transaction.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func New(id, productID, userID, userName string, rating int, comment string) (*Review, error) {
	if productID == "" {
		return nil, ErrEmptyProduct
	}
	if userID == "" {
		return nil, ErrEmptyUser
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return &Review{
		ID:        id,
		ProductID: productID,
		UserID:    userID,
		UserName:  userName,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}, nil
}
