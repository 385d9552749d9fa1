package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/pkg/db"
	"github.com/smallbiznis/datasync/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SQLStore persists records and audit rows through gorm.
type SQLStore struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewSQLStore(db *gorm.DB, genID *snowflake.Node) *SQLStore {
	return &SQLStore{db: db, genID: genID}
}

// AutoMigrate creates the tables on dialects not covered by SQL migrations.
func (s *SQLStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *SQLStore) InsertRecord(ctx context.Context, rec domain.CanonicalRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", domain.ErrPersist, err)
	}
	locator := ""
	if len(rec.Link) > 0 {
		locator = rec.Link[0].URL
	}
	row := recordRow{
		ID:         s.genID.Generate(),
		DHRID:      rec.DHRID,
		ArcDocID:   rec.ArcDocID(),
		ActivityID: rec.ActivityID,
		PairName:   rec.PairName,
		Locator:    locator,
		Payload:    datatypes.JSON(payload),
		CreatedAt:  time.Now().UTC(),
	}
	return s.create(ctx, domain.SinkRecords, &row)
}

func (s *SQLStore) Append(ctx context.Context, entry domain.Entry) error {
	switch e := entry.(type) {
	case domain.CanonicalRecord:
		return s.InsertRecord(ctx, e)
	case domain.ActivityRecord:
		return s.create(ctx, e.Sink(), &activityRow{
			ID:           s.genID.Generate(),
			ActivityID:   e.ActivityID,
			TotalFiles:   e.TotalFiles,
			PassedFiles:  e.PassedFiles,
			FailedFiles:  e.FailedFiles,
			TotalXMLSize: e.TotalXMLSize,
			TotalPDFSize: e.TotalPDFSize,
			StartTime:    e.StartTime.UTC(),
			EndTime:      e.EndTime.UTC(),
			ElapsedMS:    e.ElapsedMS,
			Status:       string(e.Status),
			Error:        e.Error,
		})
	case domain.PairHistoryEntry:
		return s.create(ctx, e.Sink(), &pairHistoryRow{
			ID:         s.genID.Generate(),
			StatusID:   e.StatusID,
			DHRID:      e.DHRID,
			ActivityID: e.ActivityID,
			PairName:   e.PairName,
			Status:     string(e.Status),
			RecordedAt: e.Timestamp.UTC(),
		})
	case domain.EventLogEntry:
		lines, err := json.Marshal(e.Log)
		if err != nil {
			return fmt.Errorf("%w: encode event log: %w", domain.ErrPersist, err)
		}
		return s.create(ctx, e.Sink(), &eventLogRow{
			ID:         s.genID.Generate(),
			EventsID:   e.EventsID,
			DHRID:      e.DHRID,
			PairName:   e.PairName,
			Log:        datatypes.JSON(lines),
			RecordedAt: e.Timestamp.UTC(),
			ActivityID: e.ActivityID,
		})
	case domain.StorageLogEntry:
		return s.create(ctx, e.Sink(), &storageLogRow{
			ID:         s.genID.Generate(),
			RecordedAt: e.Timestamp.UTC(),
			ActivityID: e.ActivityID,
			DHRID:      e.DHRID,
			PairName:   e.PairName,
			Locator:    e.Locator,
		})
	default:
		return fmt.Errorf("%w: %w: %T", domain.ErrPersist, domain.ErrUnknownSink, entry)
	}
}

func (s *SQLStore) create(ctx context.Context, sink domain.Sink, row interface{}) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %w: insert %s: %w", domain.ErrPersist, domain.ErrDuplicate, sink, err)
		}
		return fmt.Errorf("%w: insert %s: %w", domain.ErrPersist, sink, err)
	}
	return nil
}

func (s *SQLStore) ListActivities(ctx context.Context, req domain.ListActivitiesRequest) (domain.ListActivitiesResponse, error) {
	limit := req.Limit()
	stmt := s.db.WithContext(ctx).Model(&activityRow{})

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListActivitiesResponse{}, domain.ErrInvalidPageToken
		}
		startedAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return domain.ListActivitiesResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListActivitiesResponse{}, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(activity_start_time < ?) OR (activity_start_time = ? AND id < ?)", startedAt, startedAt, id)
	}

	var rows []activityRow
	if err := stmt.Order("activity_start_time desc, id desc").Limit(limit + 1).Find(&rows).Error; err != nil {
		return domain.ListActivitiesResponse{}, err
	}

	var encodeErr error
	rows, pageInfo := pagination.Trim(rows, limit, func(r activityRow) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.StartTime.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			encodeErr = err
		}
		return token
	})
	if encodeErr != nil {
		return domain.ListActivitiesResponse{}, encodeErr
	}

	out := make([]domain.ActivityRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ActivityRecord{
			ActivityID:   r.ActivityID,
			TotalFiles:   r.TotalFiles,
			PassedFiles:  r.PassedFiles,
			FailedFiles:  r.FailedFiles,
			TotalXMLSize: r.TotalXMLSize,
			TotalPDFSize: r.TotalPDFSize,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			ElapsedMS:    r.ElapsedMS,
			Status:       domain.ActivityStatus(r.Status),
			Error:        r.Error,
		})
	}
	return domain.ListActivitiesResponse{PageInfo: pageInfo, Activities: out}, nil
}

func (s *SQLStore) ListPairHistory(ctx context.Context, activityID string) ([]domain.PairHistoryEntry, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return nil, domain.ErrInvalidActivity
	}
	var rows []pairHistoryRow
	err := s.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("recorded_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.PairHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PairHistoryEntry{
			StatusID:   r.StatusID,
			DHRID:      r.DHRID,
			ActivityID: r.ActivityID,
			PairName:   r.PairName,
			Status:     domain.PairStatus(r.Status),
			Timestamp:  r.RecordedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&recordRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// FindRecord loads the canonical record stored for dhrID.
func (s *SQLStore) FindRecord(ctx context.Context, dhrID string) (*domain.CanonicalRecord, error) {
	var row recordRow
	err := s.db.WithContext(ctx).Where("dhr_id = ?", dhrID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec domain.CanonicalRecord
	if err := json.Unmarshal(row.Payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ domain.Store = (*SQLStore)(nil)
