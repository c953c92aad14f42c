package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskdesk/internal/task"
	"taskdesk/internal/user"
)

const (
	tasksCollection = "tasks"
	usersCollection = "users"

	connectTimeout = 10 * time.Second
)

// Mongo implements Store on top of a MongoDB database.
type Mongo struct {
	client *mongo.Client
	tasks  *mongo.Collection
	users  *mongo.Collection
}

// ConnectMongo dials the database, verifies the connection and provisions
// the indexes the queries below rely on.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client: client,
		tasks:  db.Collection(tasksCollection),
		users:  db.Collection(usersCollection),
	}
	if err := m.ensureIndexes(dialCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "due_date", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assignee", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("task indexes: %w", err)
	}
	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("user index: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (m *Mongo) InsertTask(ctx context.Context, t *task.Task) error {
	if t.ID == "" {
		t.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.tasks.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (m *Mongo) TaskByID(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	err := m.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &t, nil
}

func (m *Mongo) UpdateTask(ctx context.Context, id string, fields map[string]any) (*task.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t task.Task
	err := m.tasks.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)}, opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &t, nil
}

func (m *Mongo) ListTasks(ctx context.Context) ([]*task.Task, error) {
	return m.findTasks(ctx, bson.M{})
}

func (m *Mongo) TasksCreatedBetween(ctx context.Context, from, to time.Time) ([]*task.Task, error) {
	return m.findTasks(ctx, bson.M{"created_at": bson.M{"$gte": from, "$lte": to}})
}

func (m *Mongo) findTasks(ctx context.Context, filter bson.M) ([]*task.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.tasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	var out []*task.Task
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return out, nil
}

func (m *Mongo) InsertUser(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *Mongo) UserByID(ctx context.Context, id string) (*user.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var u user.User
	err := m.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (m *Mongo) ListUsers(ctx context.Context) ([]*user.User, error) {
	cursor, err := m.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var out []*user.User
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}
