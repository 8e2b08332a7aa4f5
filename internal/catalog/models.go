package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and display format for calendar dates.
const DateLayout = "2006-01-02"

type Product struct {
	ID            int64           `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"size:255;not null" validate:"required,max=255"`
	Description   string          `json:"description"`
	Brand         string          `json:"brand" gorm:"size:255" validate:"max=255"`
	Category      string          `json:"category" gorm:"size:255" validate:"max=255"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ReleaseDate   Date            `json:"releaseDate" gorm:"type:date"`
	Available     bool            `json:"productAvailable"`
	StockQuantity int             `json:"stockQuantity" gorm:"not null;check:stock_quantity >= 0" validate:"gte=0"`
	ImageName     string          `json:"imageName,omitempty" gorm:"size:255"`
	ImageType     string          `json:"imageType,omitempty" gorm:"size:100"`
	ImageData     []byte          `json:"-"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`
}

// Image is an uploaded product picture, read fully into memory.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Date is a calendar date without a time component.
type Date struct{ time.Time }

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// accept full timestamps too, keep only the date part
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	case string:
		return d.UnmarshalJSON([]byte(v))
	case []byte:
		return d.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}
