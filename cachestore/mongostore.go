package cachestore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	databaseName   = "modrun_cache"
	entriesCollection = "entries"
)

// MongoStore backs Store with a mongo collection, mirroring
// src/dao/mongoStoreage/mongo.go's CreateMongoDao constructor shape (a
// single mongo.Client, connected with context.TODO(), panic on connect
// failure). Each Store operation runs under the caller's ctx.
type MongoStore struct {
	c *mongo.Client
}

type cacheDocument struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

func NewMongoStore(uri string) *MongoStore {
	client, err := mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		panic(err)
	}
	return &MongoStore{c: client}
}

func (m *MongoStore) collection() *mongo.Collection {
	return m.c.Database(databaseName).Collection(entriesCollection)
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc cacheDocument
	err := m.collection().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc.Value, true, nil
}

func (m *MongoStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := m.collection().ReplaceOne(
		ctx,
		bson.M{"_id": key},
		cacheDocument{Key: key, Value: value},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := m.collection().DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoStore) Keys(ctx context.Context) ([]string, error) {
	cursor, err := m.collection().Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []cacheDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	return keys, nil
}
