package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/pkg/db/pagination"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	legacyActivityIndex = "activity_id_1"
	namespaceNotFound   = 26
)

// MongoStore writes one collection per sink: records in the primary
// database, audit rows in the log database.
type MongoStore struct {
	collections map[domain.Sink]*mongo.Collection
}

func NewMongoStore(client *mongo.Client, cfg config.StoreConfig) *MongoStore {
	primary := client.Database(cfg.MongoDatabase)
	logs := client.Database(cfg.MongoLogDatabase)
	return &MongoStore{collections: map[domain.Sink]*mongo.Collection{
		domain.SinkRecords:     primary.Collection(cfg.RecordCollection),
		domain.SinkActivity:    logs.Collection(cfg.ActivityCollection),
		domain.SinkPairHistory: logs.Collection(cfg.PairHistoryCollection),
		domain.SinkEventLog:    logs.Collection(cfg.EventLogCollection),
		domain.SinkStorageLog:  logs.Collection(cfg.StorageLogCollection),
	}}
}

// EnsureIndexes creates the lookup indexes used by the read side.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[domain.Sink][]mongo.IndexModel{
		domain.SinkRecords: {
			{Keys: bson.D{{Key: "DHR_ID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ACTIVITY_ID", Value: 1}}},
		},
		domain.SinkActivity: {
			// Not unique: a reused --activity-id appends another summary row.
			{Keys: bson.D{{Key: "activity_id", Value: 1}}},
			{Keys: bson.D{{Key: "activity_start_time", Value: -1}}},
		},
		domain.SinkPairHistory: {{Keys: bson.D{{Key: "activity_id", Value: 1}}}},
		domain.SinkEventLog:    {{Keys: bson.D{{Key: "activity_id", Value: 1}}}},
		domain.SinkStorageLog:  {{Keys: bson.D{{Key: "activity_id", Value: 1}}}},
	}
	if err := s.dropUniqueActivityIndex(ctx); err != nil {
		return err
	}
	for sink, models := range indexes {
		if _, err := s.collections[sink].Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", sink, err)
		}
	}
	return nil
}

// dropUniqueActivityIndex removes the unique activity_id index older
// deployments created; it conflicts with the plain one.
func (s *MongoStore) dropUniqueActivityIndex(ctx context.Context) error {
	view := s.collections[domain.SinkActivity].Indexes()
	specs, err := view.ListSpecifications(ctx)
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == namespaceNotFound {
			return nil
		}
		return fmt.Errorf("list %s indexes: %w", domain.SinkActivity, err)
	}
	for _, spec := range specs {
		if spec.Name != legacyActivityIndex || spec.Unique == nil || !*spec.Unique {
			continue
		}
		if _, err := view.DropOne(ctx, spec.Name); err != nil {
			return fmt.Errorf("drop %s index %s: %w", domain.SinkActivity, spec.Name, err)
		}
	}
	return nil
}

func (s *MongoStore) InsertRecord(ctx context.Context, rec domain.CanonicalRecord) error {
	return s.insert(ctx, domain.SinkRecords, rec)
}

func (s *MongoStore) Append(ctx context.Context, entry domain.Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: %w: nil entry", domain.ErrPersist, domain.ErrUnknownSink)
	}
	return s.insert(ctx, entry.Sink(), entry)
}

func (s *MongoStore) insert(ctx context.Context, sink domain.Sink, doc interface{}) error {
	coll, ok := s.collections[sink]
	if !ok {
		return fmt.Errorf("%w: %w: %s", domain.ErrPersist, domain.ErrUnknownSink, sink)
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w: insert %s: %w", domain.ErrPersist, domain.ErrDuplicate, sink, err)
		}
		return fmt.Errorf("%w: insert %s: %w", domain.ErrPersist, sink, err)
	}
	return nil
}

func (s *MongoStore) ListActivities(ctx context.Context, req domain.ListActivitiesRequest) (domain.ListActivitiesResponse, error) {
	limit := req.Limit()
	filter := bson.D{}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListActivitiesResponse{}, domain.ErrInvalidPageToken
		}
		startedAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return domain.ListActivitiesResponse{}, domain.ErrInvalidPageToken
		}
		filter = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "activity_start_time", Value: bson.D{{Key: "$lt", Value: startedAt}}}},
			bson.D{
				{Key: "activity_start_time", Value: startedAt},
				{Key: "activity_id", Value: bson.D{{Key: "$lt", Value: cursor.ID}}},
			},
		}}}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "activity_start_time", Value: -1}, {Key: "activity_id", Value: -1}}).
		SetLimit(int64(limit + 1))
	cur, err := s.collections[domain.SinkActivity].Find(ctx, filter, opts)
	if err != nil {
		return domain.ListActivitiesResponse{}, err
	}
	var rows []domain.ActivityRecord
	if err := cur.All(ctx, &rows); err != nil {
		return domain.ListActivitiesResponse{}, err
	}

	var encodeErr error
	rows, pageInfo := pagination.Trim(rows, limit, func(a domain.ActivityRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        a.ActivityID,
			CreatedAt: a.StartTime.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			encodeErr = err
		}
		return token
	})
	if encodeErr != nil {
		return domain.ListActivitiesResponse{}, encodeErr
	}
	if rows == nil {
		rows = []domain.ActivityRecord{}
	}
	return domain.ListActivitiesResponse{PageInfo: pageInfo, Activities: rows}, nil
}

func (s *MongoStore) ListPairHistory(ctx context.Context, activityID string) ([]domain.PairHistoryEntry, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return nil, domain.ErrInvalidActivity
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.collections[domain.SinkPairHistory].Find(ctx, bson.D{{Key: "activity_id", Value: activityID}}, opts)
	if err != nil {
		return nil, err
	}
	out := []domain.PairHistoryEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) CountRecords(ctx context.Context) (int64, error) {
	return s.collections[domain.SinkRecords].CountDocuments(ctx, bson.D{})
}

func (s *MongoStore) FindRecord(ctx context.Context, dhrID string) (*domain.CanonicalRecord, error) {
	var rec domain.CanonicalRecord
	err := s.collections[domain.SinkRecords].FindOne(ctx, bson.D{{Key: "DHR_ID", Value: dhrID}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ domain.Store = (*MongoStore)(nil)
