package databases

// go generate: mockery --name AlertDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mindhaven/crisis-api/models"
)

const alertName = "alerts"

// AlertDatabase contains the methods to use with the alert database
type AlertDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Alert, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Alert, error)
	InsertOne(context.Context, *models.Alert) error
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindLive(ctx context.Context, userID, sessionID string) (*models.Alert, error)
	Unresolved(ctx context.Context, limit int64) ([]models.Alert, error)
}

type alertDatabase struct {
	db DatabaseHelper
}

// NewAlertDatabase initializes a new instance of alert database with the provided db connection
func NewAlertDatabase(db DatabaseHelper) AlertDatabase {
	return &alertDatabase{
		db: db,
	}
}

func (a *alertDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Alert, error) {
	alert := &models.Alert{}
	err := a.db.Collection(alertName).FindOne(ctx, filter, opts...).Decode(&alert)
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (a *alertDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Alert, error) {
	var alerts []models.Alert
	cr, err := a.db.Collection(alertName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&alerts)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (a *alertDatabase) InsertOne(ctx context.Context, alert *models.Alert) error {
	upsert := true
	_, err := a.db.Collection(alertName).UpdateOne(ctx,
		bson.M{"_id": alert.ID},
		bson.M{"$setOnInsert": alert},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

func (a *alertDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return a.db.Collection(alertName).UpdateOne(ctx, filter, update, opts...)
}

// FindLive returns the single live alert for a (user, session) pair, or
// mongo.ErrNoDocuments when none exists. Live statuses are the dedup set.
func (a *alertDatabase) FindLive(ctx context.Context, userID, sessionID string) (*models.Alert, error) {
	return a.FindOne(ctx, bson.M{
		"userId":    userID,
		"sessionId": sessionID,
		"status":    bson.M{"$in": models.LiveStatuses},
	})
}

// Unresolved returns live alerts for the monitoring dashboard, most severe and
// most recent first.
func (a *alertDatabase) Unresolved(ctx context.Context, limit int64) ([]models.Alert, error) {
	sort := bson.D{{Key: "severity", Value: -1}, {Key: "createdAt", Value: -1}}
	return a.Find(ctx,
		bson.M{"status": bson.M{"$in": models.LiveStatuses}},
		&options.FindOptions{Sort: sort, Limit: &limit},
	)
}
