package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
)

// Order owns its items; deleting an order deletes its items.
type Order struct {
	ID           int64       `gorm:"primaryKey"`
	Code         string      `gorm:"size:16;uniqueIndex;not null"`
	CustomerName string      `gorm:"size:255;not null"`
	Email        string      `gorm:"size:255;not null"`
	Status       Status      `gorm:"size:20;not null"`
	OrderDate    time.Time   `gorm:"type:date;not null"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
}

type OrderItem struct {
	ID        int64 `gorm:"primaryKey"`
	OrderID   int64 `gorm:"not null;index"`
	ProductID int64 `gorm:"not null;index"`
	// Product is read-only from the item's side.
	Product    catalog.Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity   int             `gorm:"not null;check:quantity > 0"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null"`
}

type LineRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type Request struct {
	CustomerName string        `json:"customerName" validate:"required,max=255"`
	Email        string        `json:"email" validate:"required,email,max=255"`
	Items        []LineRequest `json:"items" validate:"required,min=1,dive"`
}

type LineResponse struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type Response struct {
	OrderCode    string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	Email        string          `json:"email"`
	Status       Status          `json:"status"`
	OrderDate    string          `json:"orderDate"`
	Items        []LineResponse  `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

// LineTotal is unit price times quantity, kept at the currency's minor unit.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

func ToResponse(o Order) Response {
	items := make([]LineResponse, 0, len(o.Items))
	total := decimal.Zero
	for _, it := range o.Items {
		items = append(items, LineResponse{
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			TotalPrice:  it.TotalPrice,
		})
		total = total.Add(it.TotalPrice)
	}
	return Response{
		OrderCode:    o.Code,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Status:       o.Status,
		OrderDate:    o.OrderDate.Format(catalog.DateLayout),
		Items:        items,
		Total:        total,
	}
}
