package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/datasync/pkg/db/pagination"
)

// Sink names one of the append-only stores a pair or activity writes to.
type Sink string

const (
	SinkRecords     Sink = "records"
	SinkActivity    Sink = "activity"
	SinkPairHistory Sink = "pair_history"
	SinkEventLog    Sink = "event_log"
	SinkStorageLog  Sink = "storage_log"
)

type PairStatus string

const (
	PairPassed PairStatus = "Passed"
	PairFailed PairStatus = "Failed"
)

type ActivityStatus string

const (
	ActivityCompleted ActivityStatus = "completed"
	ActivityFailed    ActivityStatus = "failed"
)

// LinkEntry ties a canonical record to its archived binary.
type LinkEntry struct {
	ArchiveID string `json:"ARCHIV_ID" bson:"ARCHIV_ID"`
	ARDate    string `json:"AR_DATE" bson:"AR_DATE"`
	ARObject  string `json:"AR_OBJECT" bson:"AR_OBJECT"`
	ArcDocID  string `json:"ARC_DOC_ID" bson:"ARC_DOC_ID"`
	Reserve   string `json:"RESERVE" bson:"RESERVE"`
	Filename  string `json:"FILENAME" bson:"FILENAME"`
	URL       string `json:"URL,omitempty" bson:"URL,omitempty"`
}

// CanonicalRecord is the format-independent document persisted once per passed pair.
type CanonicalRecord struct {
	Document   interface{} `json:"document" bson:"document"`
	Link       []LinkEntry `json:"LINK" bson:"LINK"`
	Instance   string      `json:"INSTANCE" bson:"INSTANCE"`
	Session    string      `json:"SESSION" bson:"SESSION"`
	ArchiveKey string      `json:"ARCHIVEKEY" bson:"ARCHIVEKEY"`
	Object     string      `json:"OBJECT" bson:"OBJECT"`
	Offset     string      `json:"OFFSET" bson:"OFFSET"`
	ActivityID string      `json:"ACTIVITY_ID" bson:"ACTIVITY_ID"`
	DHRID      string      `json:"DHR_ID" bson:"DHR_ID"`
	PairName   string      `json:"PAIR_NAME" bson:"PAIR_NAME"`
}

// ArcDocID returns the archive id of the first link entry.
func (r CanonicalRecord) ArcDocID() string {
	if len(r.Link) == 0 {
		return ""
	}
	return r.Link[0].ArcDocID
}

// WithLocator returns a copy whose link block carries the storage locator.
func (r CanonicalRecord) WithLocator(locator string) CanonicalRecord {
	links := make([]LinkEntry, len(r.Link))
	copy(links, r.Link)
	if len(links) > 0 {
		links[0].URL = locator
	}
	r.Link = links
	return r
}

func (CanonicalRecord) Sink() Sink { return SinkRecords }

// ActivityRecord summarizes one pipeline run.
type ActivityRecord struct {
	ActivityID   string         `json:"activity_id" bson:"activity_id"`
	TotalFiles   int            `json:"total_files" bson:"total_files"`
	PassedFiles  int            `json:"passed_files" bson:"passed_files"`
	FailedFiles  int            `json:"failed_files" bson:"failed_files"`
	TotalXMLSize int64          `json:"total_xml_size" bson:"total_xml_size"`
	TotalPDFSize int64          `json:"total_pdf_size" bson:"total_pdf_size"`
	StartTime    time.Time      `json:"activity_start_time" bson:"activity_start_time"`
	EndTime      time.Time      `json:"activity_end_time" bson:"activity_end_time"`
	ElapsedMS    int64          `json:"elapsed_ms" bson:"elapsed_ms"`
	Status       ActivityStatus `json:"status" bson:"status"`
	Error        string         `json:"error,omitempty" bson:"error,omitempty"`
}

func (ActivityRecord) Sink() Sink { return SinkActivity }

// Elapsed is the wall-clock duration of the run.
func (a ActivityRecord) Elapsed() time.Duration {
	if a.EndTime.IsZero() || a.EndTime.Before(a.StartTime) {
		return 0
	}
	return a.EndTime.Sub(a.StartTime)
}

type PairHistoryEntry struct {
	StatusID   string     `json:"status_id" bson:"status_id"`
	DHRID      string     `json:"dhr_id" bson:"dhr_id"`
	ActivityID string     `json:"activity_id" bson:"activity_id"`
	PairName   string     `json:"pair_name" bson:"pair_name"`
	Status     PairStatus `json:"status" bson:"status"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
}

func (PairHistoryEntry) Sink() Sink { return SinkPairHistory }

type EventLogEntry struct {
	EventsID   string    `json:"events_id" bson:"events_id"`
	DHRID      string    `json:"dhr_id" bson:"dhr_id"`
	PairName   string    `json:"pair_name" bson:"pair_name"`
	Log        []string  `json:"log" bson:"log"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	ActivityID string    `json:"activity_id" bson:"activity_id"`
}

func (EventLogEntry) Sink() Sink { return SinkEventLog }

type StorageLogEntry struct {
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	ActivityID string    `json:"activity_id" bson:"activity_id"`
	DHRID      string    `json:"dhr_id" bson:"dhr_id"`
	PairName   string    `json:"pair_name" bson:"pair_name"`
	Locator    string    `json:"locator" bson:"locator"`
}

func (StorageLogEntry) Sink() Sink { return SinkStorageLog }

// Entry is any append-only row; its Sink decides where it is written.
type Entry interface {
	Sink() Sink
}

// Repository is the write side used by the pipeline. Every call is a single insert.
type Repository interface {
	InsertRecord(ctx context.Context, rec CanonicalRecord) error
	Append(ctx context.Context, entry Entry) error
}

type ListActivitiesRequest struct {
	pagination.Pagination
}

type ListActivitiesResponse struct {
	pagination.PageInfo
	Activities []ActivityRecord `json:"activities"`
}

// Reader is the read side consumed by the status API.
type Reader interface {
	ListActivities(ctx context.Context, req ListActivitiesRequest) (ListActivitiesResponse, error)
	ListPairHistory(ctx context.Context, activityID string) ([]PairHistoryEntry, error)
	CountRecords(ctx context.Context) (int64, error)
	FindRecord(ctx context.Context, dhrID string) (*CanonicalRecord, error)
}

// Store is a backend providing both sides.
type Store interface {
	Repository
	Reader
}

var (
	ErrPersist          = errors.New("persist_failed")
	ErrDuplicate        = errors.New("duplicate_entry")
	ErrUnknownSink      = errors.New("unknown_sink")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidActivity  = errors.New("invalid_activity")
)
