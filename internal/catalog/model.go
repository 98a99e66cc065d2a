package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	CategoryID  *int64          `json:"categoryId,omitempty"`
	IsAvailable bool            `json:"isAvailable"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Entry is the slice of a product the pricing and order paths care about.
type Entry struct {
	Name        string
	Price       decimal.Decimal
	IsAvailable bool
}

func (p Product) Entry() Entry {
	return Entry{Name: p.Name, Price: p.Price, IsAvailable: p.IsAvailable}
}
