package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore — вторая реализация BackingStore, демонстрирующая, что
// контракт §6 не привязан к реляционной модели ("any store satisfying the
// contract suffices"). Регионы живут в одной коллекции, объекты — в
// другой, с индексом по region_id.
type MongoStore struct {
	client  *mongo.Client
	regions *mongo.Collection
	objects *mongo.Collection
}

type mongoRegionDoc struct {
	RegionID string  `bson:"_id"`
	CX       float64 `bson:"cx"`
	CY       float64 `bson:"cy"`
	CZ       float64 `bson:"cz"`
	Radius   float64 `bson:"radius"`
}

type mongoObjectDoc struct {
	UUID          string `bson:"_id"`
	RegionID      string `bson:"region_id"`
	Type          string `bson:"type"`
	X             float64 `bson:"x"`
	Y             float64 `bson:"y"`
	Z             float64 `bson:"z"`
	PayloadInline []byte `bson:"payload_inline,omitempty"`
	PayloadRef    string `bson:"payload_ref,omitempty"`
}

// NewMongoStore подключается к uri и подготавливает коллекции/индексы.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("не удалось проверить соединение с MongoDB: %w", err)
	}

	db := client.Database(database)
	objects := db.Collection("pv_objects")
	if _, err := objects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "region_id", Value: 1}},
	}); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("не удалось создать индекс region_id: %w", err)
	}

	return &MongoStore{
		client:  client,
		regions: db.Collection("pv_regions"),
		objects: objects,
	}, nil
}

func (s *MongoStore) ListRegions(ctx context.Context) ([]RegionRecord, error) {
	cur, err := s.regions.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения реестра регионов: %w", err)
	}
	defer cur.Close(ctx)

	var result []RegionRecord
	for cur.Next(ctx) {
		var doc mongoRegionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка разбора документа региона: %w", err)
		}
		id, err := uuid.Parse(doc.RegionID)
		if err != nil {
			return nil, fmt.Errorf("некорректный region_id %q в хранилище: %w", doc.RegionID, err)
		}
		result = append(result, RegionRecord{RegionID: id, CX: doc.CX, CY: doc.CY, CZ: doc.CZ, Radius: doc.Radius})
	}
	return result, cur.Err()
}

func (s *MongoStore) UpsertRegion(ctx context.Context, rec RegionRecord) error {
	doc := mongoRegionDoc{RegionID: rec.RegionID.String(), CX: rec.CX, CY: rec.CY, CZ: rec.CZ, Radius: rec.Radius}
	_, err := s.regions.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.RegionID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ошибка сохранения региона %s: %w", rec.RegionID, err)
	}
	return nil
}

func (s *MongoStore) DeleteRegion(ctx context.Context, regionID uuid.UUID) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ошибка открытия сессии удаления региона %s: %w", regionID, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.objects.DeleteMany(sc, bson.D{{Key: "region_id", Value: regionID.String()}}); err != nil {
			return nil, err
		}
		if _, err := s.regions.DeleteOne(sc, bson.D{{Key: "_id", Value: regionID.String()}}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления региона %s: %w", regionID, err)
	}
	return nil
}

func (s *MongoStore) LoadObjects(ctx context.Context, regionID uuid.UUID) ([]ObjectRecord, error) {
	cur, err := s.objects.Find(ctx, bson.D{{Key: "region_id", Value: regionID.String()}})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объектов региона %s: %w", regionID, err)
	}
	defer cur.Close(ctx)

	var result []ObjectRecord
	for cur.Next(ctx) {
		var doc mongoObjectDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка разбора документа объекта: %w", err)
		}
		id, err := uuid.Parse(doc.UUID)
		if err != nil {
			return nil, fmt.Errorf("некорректный uuid %q в хранилище: %w", doc.UUID, err)
		}
		result = append(result, ObjectRecord{
			UUID: id, RegionID: regionID, Type: doc.Type,
			X: doc.X, Y: doc.Y, Z: doc.Z,
			PayloadInline: doc.PayloadInline, PayloadRef: doc.PayloadRef,
		})
	}
	return result, cur.Err()
}

// UpsertObjectsTx использует сессию Mongo с WithTransaction для
// all-or-nothing коммита, зеркалируя гарантию SQLStore (§4.5).
func (s *MongoStore) UpsertObjectsTx(ctx context.Context, regionID uuid.UUID, records []ObjectRecord, tombstones []uuid.UUID) error {
	if len(records) == 0 && len(tombstones) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ошибка открытия сессии чекпоинта региона %s: %w", regionID, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, rec := range records {
			doc := mongoObjectDoc{
				UUID: rec.UUID.String(), RegionID: regionID.String(), Type: rec.Type,
				X: rec.X, Y: rec.Y, Z: rec.Z,
				PayloadInline: rec.PayloadInline, PayloadRef: rec.PayloadRef,
			}
			_, err := s.objects.ReplaceOne(sc, bson.D{{Key: "_id", Value: doc.UUID}}, doc, options.Replace().SetUpsert(true))
			if err != nil {
				return nil, fmt.Errorf("ошибка upsert объекта %s: %w", rec.UUID, err)
			}
		}
		for _, id := range tombstones {
			if _, err := s.objects.DeleteOne(sc, bson.D{{Key: "_id", Value: id.String()}, {Key: "region_id", Value: regionID.String()}}); err != nil {
				return nil, fmt.Errorf("ошибка удаления объекта %s: %w", id, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("ошибка фиксации транзакции чекпоинта региона %s: %w", regionID, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
