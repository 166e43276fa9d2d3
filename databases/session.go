package databases

// go generate: mockery --name SessionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mindhaven/crisis-api/models"
)

const sessionName = "sessions"

// SessionDatabase contains the methods to use with the session database
type SessionDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Session, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Session, error)
	InsertOne(context.Context, *models.Session) error
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type sessionDatabase struct {
	db DatabaseHelper
}

// NewSessionDatabase initializes a new instance of session database with the provided db connection
func NewSessionDatabase(db DatabaseHelper) SessionDatabase {
	return &sessionDatabase{
		db: db,
	}
}

func (s *sessionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.Collection(sessionName).FindOne(ctx, filter, opts...).Decode(&session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Session, error) {
	var sessions []models.Session
	cr, err := s.db.Collection(sessionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&sessions)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *sessionDatabase) InsertOne(ctx context.Context, session *models.Session) error {
	upsert := true
	_, err := s.db.Collection(sessionName).UpdateOne(ctx,
		bson.M{"_id": session.ID},
		bson.M{"$setOnInsert": session},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

func (s *sessionDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return s.db.Collection(sessionName).UpdateOne(ctx, filter, update, opts...)
}
