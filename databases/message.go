package databases

// go generate: mockery --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mindhaven/crisis-api/models"
)

const messageName = "messages"

// MessageDatabase contains the methods to use with the message database
type MessageDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Message, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Message, error)
	InsertOne(context.Context, *models.Message) error
	RecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.Message, error)
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Message, error) {
	message := &models.Message{}
	err := m.db.Collection(messageName).FindOne(ctx, filter, opts...).Decode(&message)
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (m *messageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	var messages []models.Message
	cr, err := m.db.Collection(messageName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertOne writes a message keyed by its client-generated id. The write is an
// upsert so a retried insert after a transient failure cannot duplicate the row.
func (m *messageDatabase) InsertOne(ctx context.Context, message *models.Message) error {
	upsert := true
	_, err := m.db.Collection(messageName).UpdateOne(ctx,
		bson.M{"_id": message.ID},
		bson.M{"$setOnInsert": message},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

// RecentBySession returns the last `limit` messages of a session in
// chronological order, for history replay on reconnect.
func (m *messageDatabase) RecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.Message, error) {
	sort := bson.D{{Key: "createdAt", Value: -1}}
	messages, err := m.Find(ctx,
		bson.M{"sessionId": sessionID},
		&options.FindOptions{Sort: sort, Limit: &limit},
	)
	if err != nil {
		return nil, err
	}
	// newest-first from the index; callers want oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
