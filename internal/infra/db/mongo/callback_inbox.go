package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hotelbooking/internal/app/policies"
)

// CallbackInbox is the audit log of gateway callbacks. The unique delivery
// key turns redeliveries into duplicate-key errors.
type CallbackInbox struct {
	col *mongo.Collection
}

func NewCallbackInbox(ctx context.Context, db *mongo.Database) (*CallbackInbox, error) {
	col := db.Collection("payment_callbacks")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "delivery_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &CallbackInbox{col: col}, nil
}

func (i *CallbackInbox) Record(ctx context.Context, d policies.CallbackDelivery) (bool, error) {
	doc := bson.M{
		"delivery_key": policies.DeliveryKey(d),
		"provider":     d.Provider,
		"order_id":     d.OrderID,
		"request_id":   d.RequestID,
		"result_code":  d.ResultCode,
		"body":         string(d.Body),
		"received_at":  d.ReceivedAt.UTC(),
	}
	_, err := i.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

var _ policies.CallbackInbox = (*CallbackInbox)(nil)
