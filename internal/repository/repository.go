package repository

import (
	"context"
	"time"
)

// GiftAction is one corrective mutation issued during a reconciliation pass.
type GiftAction struct {
	Kind      string `bson:"kind" json:"kind"` // add | remove | requantity
	GiftKey   string `bson:"gift_key,omitempty" json:"gift_key,omitempty"`
	VariantID int64  `bson:"variant_id" json:"variant_id"`
	Line      int    `bson:"line,omitempty" json:"line,omitempty"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// ReconcileRecord is the audit trail of one pass: what the qualifying
// subtotal was and which mutations were issued to converge the cart.
type ReconcileRecord struct {
	ID        string       `bson:"_id" json:"id"`
	CartToken string       `bson:"cart_token" json:"cart_token"`
	Subtotal  int64        `bson:"subtotal" json:"subtotal"`
	Actions   []GiftAction `bson:"actions" json:"actions"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
}

// AuditRepository stores reconciliation passes for later inspection.
// Consumers define this interface, not the MongoDB implementation.
type AuditRepository interface {
	Record(ctx context.Context, rec *ReconcileRecord) error
	Recent(ctx context.Context, limit int64) ([]ReconcileRecord, error)
}
