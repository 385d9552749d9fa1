package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type recordRow struct {
	ID         snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	DHRID      string         `gorm:"column:dhr_id;uniqueIndex;not null"`
	ArcDocID   string         `gorm:"column:arc_doc_id;uniqueIndex;not null"`
	ActivityID string         `gorm:"column:activity_id;index;not null"`
	PairName   string         `gorm:"column:pair_name"`
	Locator    string         `gorm:"column:locator"`
	Payload    datatypes.JSON `gorm:"column:payload;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (recordRow) TableName() string { return "documents" }

type activityRow struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	ActivityID   string       `gorm:"column:activity_id;index;not null"`
	TotalFiles   int          `gorm:"column:total_files"`
	PassedFiles  int          `gorm:"column:passed_files"`
	FailedFiles  int          `gorm:"column:failed_files"`
	TotalXMLSize int64        `gorm:"column:total_xml_size"`
	TotalPDFSize int64        `gorm:"column:total_pdf_size"`
	StartTime    time.Time    `gorm:"column:activity_start_time;index"`
	EndTime      time.Time    `gorm:"column:activity_end_time"`
	ElapsedMS    int64        `gorm:"column:elapsed_ms"`
	Status       string       `gorm:"column:status"`
	Error        string       `gorm:"column:error"`
}

func (activityRow) TableName() string { return "activity_info" }

type pairHistoryRow struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	StatusID   string       `gorm:"column:status_id;not null"`
	DHRID      string       `gorm:"column:dhr_id"`
	ActivityID string       `gorm:"column:activity_id;index;not null"`
	PairName   string       `gorm:"column:pair_name"`
	Status     string       `gorm:"column:status"`
	RecordedAt time.Time    `gorm:"column:recorded_at"`
}

func (pairHistoryRow) TableName() string { return "pair_history" }

type eventLogRow struct {
	ID         snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	EventsID   string         `gorm:"column:events_id;not null"`
	DHRID      string         `gorm:"column:dhr_id"`
	PairName   string         `gorm:"column:pair_name"`
	Log        datatypes.JSON `gorm:"column:log"`
	RecordedAt time.Time      `gorm:"column:recorded_at"`
	ActivityID string         `gorm:"column:activity_id;index;not null"`
}

func (eventLogRow) TableName() string { return "event_logs" }

type storageLogRow struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	RecordedAt time.Time    `gorm:"column:recorded_at"`
	ActivityID string       `gorm:"column:activity_id;index;not null"`
	DHRID      string       `gorm:"column:dhr_id"`
	PairName   string       `gorm:"column:pair_name"`
	Locator    string       `gorm:"column:locator"`
}

func (storageLogRow) TableName() string { return "storage_logs" }

// Models lists every table owned by the SQL store, in creation order.
func Models() []interface{} {
	return []interface{}{
		&recordRow{},
		&activityRow{},
		&pairHistoryRow{},
		&eventLogRow{},
		&storageLogRow{},
	}
}
