package domain

import "time"

// DateLayout is the ISO calendar date accepted on order header lines.
const DateLayout = time.DateOnly

// Order is the parent row of one order block. ID is zero until the database
// hands back a generated key.
type Order struct {
	ID   int64
	Date time.Time
}

// OrderDetail is one line item. OrderID is set from the parent's generated
// key right before the row is queued for insertion.
type OrderDetail struct {
	Quantity    int
	Description string
	OrderID     int64
}

// OrderBlock is one logical record of the orders file: a header line and the
// detail lines that follow it. Line is the 1-based line number of the header.
type OrderBlock struct {
	Line      int
	Raw       string
	DateField string
	Order     Order
	Details   []OrderDetail
}
