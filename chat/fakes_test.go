package chat

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mindhaven/crisis-api/models"
)

// In-memory stores with real filter semantics for the query shapes the chat
// pipeline issues, so state-guarded updates behave as they would in mongo.

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := filter.(bson.M)["_id"].(string)
	s, ok := f.sessions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, _ := filter.(bson.M)["ownerUserId"].(string)
	var out []models.Session
	for _, s := range f.sessions {
		if owner == "" || s.OwnerUserID == owner {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) InsertOne(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; ok {
		return nil
	}
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionStore) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fm := filter.(bson.M)
	id, _ := fm["_id"].(string)
	s, ok := f.sessions[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	if stateFilter, ok := fm["state"].(bson.M); ok {
		allowed, _ := stateFilter["$in"].([]models.SessionState)
		found := false
		for _, st := range allowed {
			if st == s.State {
				found = true
				break
			}
		}
		if !found {
			return &mongo.UpdateResult{}, nil
		}
	}

	um := update.(bson.M)
	if set, ok := um["$set"].(bson.M); ok {
		for k, v := range set {
			switch k {
			case "state":
				s.State = v.(models.SessionState)
			case "updatedAt":
				s.UpdatedAt = v.(time.Time)
			case "lastMessageAt":
				s.LastMessageAt = v.(time.Time)
			case "endedAt":
				t := v.(time.Time)
				s.EndedAt = &t
			}
		}
	}
	if max, ok := um["$max"].(bson.M); ok {
		if lvl, ok := max["crisisLevel"].(int); ok && lvl > s.CrisisLevel {
			s.CrisisLevel = lvl
		}
	}
	if add, ok := um["$addToSet"].(bson.M); ok {
		if each, ok := add["crisisKeywords"].(bson.M); ok {
			for _, kw := range each["$each"].([]string) {
				dup := false
				for _, existing := range s.CrisisKeywords {
					if existing == kw {
						dup = true
						break
					}
				}
				if !dup {
					s.CrisisKeywords = append(s.CrisisKeywords, kw)
				}
			}
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{}
}

func (f *fakeMessageStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := filter.(bson.M)["_id"].(string)
	for i := range f.messages {
		if f.messages[i].ID == id {
			cp := f.messages[i]
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeMessageStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessionID, _ := filter.(bson.M)["sessionId"].(string)
	var out []models.Message
	for _, m := range f.messages {
		if sessionID == "" || m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) InsertOne(ctx context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == message.ID {
			return nil
		}
	}
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeMessageStore) RecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[string]*models.Alert)}
}

func (f *fakeAlertStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := filter.(bson.M)["_id"].(string)
	a, ok := f.alerts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAlertStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAlertStore) InsertOne(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[alert.ID]; ok {
		return nil
	}
	cp := *alert
	f.alerts[alert.ID] = &cp
	return nil
}

func (f *fakeAlertStore) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fm := filter.(bson.M)
	id, _ := fm["_id"].(string)
	a, ok := f.alerts[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	if statusFilter, ok := fm["status"].(bson.M); ok {
		allowed, _ := statusFilter["$in"].([]models.AlertStatus)
		found := false
		for _, st := range allowed {
			if st == a.Status {
				found = true
				break
			}
		}
		if !found {
			return &mongo.UpdateResult{}, nil
		}
	}
	set := update.(bson.M)["$set"].(bson.M)
	for k, v := range set {
		switch k {
		case "status":
			a.Status = v.(models.AlertStatus)
		case "severity":
			a.Severity = v.(int)
		case "matchedKeywords":
			a.MatchedKeywords = v.([]string)
		case "requiresImmediate":
			a.RequiresImmediate = v.(bool)
		case "assignedResponderId":
			a.AssignedResponderID = v.(string)
		case "resolutionNotes":
			a.ResolutionNotes = v.(string)
		case "messageId":
			a.MessageID = v.(string)
		case "updatedAt":
			a.UpdatedAt = v.(time.Time)
		case "acknowledgedAt":
			t := v.(time.Time)
			a.AcknowledgedAt = &t
		case "resolvedAt":
			t := v.(time.Time)
			a.ResolvedAt = &t
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f *fakeAlertStore) FindLive(ctx context.Context, userID, sessionID string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.UserID == userID && a.SessionID == sessionID && a.Status.Live() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeAlertStore) Unresolved(ctx context.Context, limit int64) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.Status.Live() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}
