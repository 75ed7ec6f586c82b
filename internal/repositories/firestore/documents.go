package firestore

import (
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	pfirestore "github.com/a2z-dev007/ecommerce-backend/internal/platform/firestore"
)

const (
	productsCollection     = "products"
	cartsCollection        = "carts"
	ordersCollection       = "orders"
	orderNumbersCollection = "order_numbers"
	countersCollection     = "counters"
)

type productDocument struct {
	SKU           string            `firestore:"sku"`
	Name          string            `firestore:"name"`
	Price         int64             `firestore:"price"`
	Currency      string            `firestore:"currency"`
	Stock         int64             `firestore:"stock"`
	SalesCount    int64             `firestore:"salesCount"`
	TrackQuantity bool              `firestore:"trackQuantity"`
	Images        []string          `firestore:"images,omitempty"`
	Variants      []variantDocument `firestore:"variants,omitempty"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	UpdatedAt     time.Time         `firestore:"updatedAt"`
}

type variantDocument struct {
	ID    string `firestore:"id"`
	SKU   string `firestore:"sku"`
	Name  string `firestore:"name"`
	Price int64  `firestore:"price"`
	Stock int64  `firestore:"stock"`
}

var productCodec = pfirestore.Codec[domain.Product, productDocument]{
	Encode: func(p domain.Product) productDocument {
		doc := productDocument{
			SKU:           p.SKU,
			Name:          p.Name,
			Price:         p.Price,
			Currency:      p.Currency,
			Stock:         int64(p.Stock),
			SalesCount:    int64(p.SalesCount),
			TrackQuantity: p.TrackQuantity,
			Images:        p.Images,
			CreatedAt:     p.CreatedAt.UTC(),
			UpdatedAt:     p.UpdatedAt.UTC(),
		}
		for _, v := range p.Variants {
			doc.Variants = append(doc.Variants, variantDocument{ID: v.ID, SKU: v.SKU, Name: v.Name, Price: v.Price, Stock: int64(v.Stock)})
		}
		return doc
	},
	Decode: func(id string, doc productDocument) domain.Product {
		p := domain.Product{
			ID:            id,
			SKU:           doc.SKU,
			Name:          doc.Name,
			Price:         doc.Price,
			Currency:      doc.Currency,
			Stock:         int(doc.Stock),
			SalesCount:    int(doc.SalesCount),
			TrackQuantity: doc.TrackQuantity,
			Images:        doc.Images,
			CreatedAt:     doc.CreatedAt,
			UpdatedAt:     doc.UpdatedAt,
		}
		for _, v := range doc.Variants {
			p.Variants = append(p.Variants, domain.ProductVariant{ID: v.ID, SKU: v.SKU, Name: v.Name, Price: v.Price, Stock: int(v.Stock)})
		}
		return p
	},
}

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	VariantID string    `firestore:"variantId,omitempty"`
	Quantity  int64     `firestore:"quantity"`
	Price     int64     `firestore:"price"`
	AddedAt   time.Time `firestore:"addedAt"`
}

var cartCodec = pfirestore.Codec[domain.Cart, cartDocument]{
	Encode: func(c domain.Cart) cartDocument {
		doc := cartDocument{UserID: c.UserID, Items: []cartItemDocument{}, CreatedAt: c.CreatedAt.UTC(), UpdatedAt: c.UpdatedAt.UTC()}
		for _, item := range c.Items {
			doc.Items = append(doc.Items, cartItemDocument{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  int64(item.Quantity),
				Price:     item.Price,
				AddedAt:   item.AddedAt.UTC(),
			})
		}
		return doc
	},
	Decode: func(id string, doc cartDocument) domain.Cart {
		c := domain.Cart{ID: id, UserID: doc.UserID, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}
		for _, item := range doc.Items {
			c.Items = append(c.Items, domain.CartItem{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  int(item.Quantity),
				Price:     item.Price,
				AddedAt:   item.AddedAt,
			})
		}
		return c
	},
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	CustomerID      string              `firestore:"customerId"`
	Email           string              `firestore:"email"`
	Phone           string              `firestore:"phone,omitempty"`
	Items           []lineItemDocument  `firestore:"items"`
	Currency        string              `firestore:"currency"`
	Totals          totalsDocument      `firestore:"totals"`
	ShippingAddress addressDocument     `firestore:"shippingAddress"`
	BillingAddress  *addressDocument    `firestore:"billingAddress,omitempty"`
	ShippingMethod  string              `firestore:"shippingMethod,omitempty"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	PaymentIntentID string              `firestore:"paymentIntentId,omitempty"`
	CouponCode      string              `firestore:"couponCode,omitempty"`
	Notes           string              `firestore:"notes,omitempty"`
	TrackingNumber  string              `firestore:"trackingNumber,omitempty"`
	Status          string              `firestore:"status"`
	PaymentStatus   string              `firestore:"paymentStatus"`
	Version         int64               `firestore:"version"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ShippedAt       *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time          `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time          `firestore:"cancelledAt,omitempty"`
}

type lineItemDocument struct {
	ProductID string `firestore:"productId"`
	VariantID string `firestore:"variantId,omitempty"`
	Name      string `firestore:"name"`
	SKU       string `firestore:"sku"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int64  `firestore:"quantity"`
	Total     int64  `firestore:"total"`
	Image     string `firestore:"image,omitempty"`
}

type totalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Tax      int64 `firestore:"tax"`
	Shipping int64 `firestore:"shipping"`
	Discount int64 `firestore:"discount"`
	Total    int64 `firestore:"total"`
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

// orderNumberDocument reserves an order number so two orders can never share one.
type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var orderCodec = pfirestore.Codec[domain.Order, orderDocument]{
	Encode: encodeOrder,
	Decode: decodeOrder,
}

func encodeOrder(o domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Email:           o.Email,
		Phone:           o.Phone,
		Items:           make([]lineItemDocument, 0, len(o.Items)),
		Currency:        o.Currency,
		Totals:          totalsDocument(o.Totals),
		ShippingAddress: addressDocument(o.ShippingAddress),
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		PaymentIntentID: o.PaymentIntentID,
		CouponCode:      o.CouponCode,
		Notes:           o.Notes,
		TrackingNumber:  o.TrackingNumber,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
		ShippedAt:       utcPtr(o.ShippedAt),
		DeliveredAt:     utcPtr(o.DeliveredAt),
		CancelledAt:     utcPtr(o.CancelledAt),
	}
	if o.BillingAddress != nil {
		billing := addressDocument(*o.BillingAddress)
		doc.BillingAddress = &billing
	}
	for _, item := range o.Items {
		doc.Items = append(doc.Items, lineItemDocument{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  int64(item.Quantity),
			Total:     item.Total,
			Image:     item.Image,
		})
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	o := domain.Order{
		ID:              id,
		OrderNumber:     doc.OrderNumber,
		CustomerID:      doc.CustomerID,
		Email:           doc.Email,
		Phone:           doc.Phone,
		Currency:        doc.Currency,
		Totals:          domain.OrderTotals(doc.Totals),
		ShippingAddress: domain.Address(doc.ShippingAddress),
		ShippingMethod:  doc.ShippingMethod,
		PaymentMethod:   doc.PaymentMethod,
		PaymentIntentID: doc.PaymentIntentID,
		CouponCode:      doc.CouponCode,
		Notes:           doc.Notes,
		TrackingNumber:  doc.TrackingNumber,
		Status:          domain.OrderStatus(doc.Status),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		ShippedAt:       doc.ShippedAt,
		DeliveredAt:     doc.DeliveredAt,
		CancelledAt:     doc.CancelledAt,
	}
	if doc.BillingAddress != nil {
		billing := domain.Address(*doc.BillingAddress)
		o.BillingAddress = &billing
	}
	for _, item := range doc.Items {
		o.Items = append(o.Items, domain.OrderLineItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  int(item.Quantity),
			Total:     item.Total,
			Image:     item.Image,
		})
	}
	return o
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
