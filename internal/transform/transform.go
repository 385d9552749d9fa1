package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/smallbiznis/datasync/internal/clock"
	"github.com/smallbiznis/datasync/internal/config"
	counterdomain "github.com/smallbiznis/datasync/internal/counter/domain"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/internal/staging"
)

var ErrTransform = errors.New("transform_failed")

const (
	manufactureDateIn  = "2-Jan-2006"
	manufactureDateOut = "20060102"
	archiveDateLayout  = "20060102"
)

// Transformer turns a validated pair into a canonical record.
type Transformer struct {
	alloc counterdomain.Allocator
	clock clock.Clock
	link  *config.LinkConfigHolder
}

func New(alloc counterdomain.Allocator, clk clock.Clock, link *config.LinkConfigHolder) *Transformer {
	return &Transformer{alloc: alloc, clock: clk, link: link}
}

// Transform extracts the payload first and only then allocates the archive id
// and offset, so a pair that cannot be extracted consumes no identifiers.
func (t *Transformer) Transform(ctx context.Context, pair staging.FilePair, activityID string) (recorddomain.CanonicalRecord, error) {
	data, err := os.ReadFile(pair.DataPath)
	if err != nil {
		return recorddomain.CanonicalRecord{}, fmt.Errorf("%w: read %s: %w", ErrTransform, pair.DataPath, err)
	}

	var payload interface{}
	switch pair.Format {
	case staging.FormatXML:
		payload, err = extractXML(data)
	case staging.FormatJSON:
		payload, err = extractJSON(data)
	case staging.FormatCSV:
		payload, err = extractCSV(data)
	default:
		err = fmt.Errorf("unsupported format %q", pair.Format)
	}
	if err != nil {
		return recorddomain.CanonicalRecord{}, fmt.Errorf("%w: %s: %w", ErrTransform, pair.Name, err)
	}

	arcDocID, err := t.alloc.Next(ctx, counterdomain.ArcDocID)
	if err != nil {
		return recorddomain.CanonicalRecord{}, fmt.Errorf("%w: %w", ErrTransform, err)
	}
	offset, err := t.alloc.Next(ctx, counterdomain.Offset)
	if err != nil {
		return recorddomain.CanonicalRecord{}, fmt.Errorf("%w: %w", ErrTransform, err)
	}

	link := t.link.Get()
	return recorddomain.CanonicalRecord{
		Document: payload,
		Link: []recorddomain.LinkEntry{{
			ArchiveID: link.ArchiveID,
			ARDate:    t.clock.Now().Format(archiveDateLayout),
			ARObject:  link.ARObject,
			ArcDocID:  arcDocID,
			Reserve:   link.Reserve,
			Filename:  filepath.Base(pair.BinaryPath),
		}},
		Instance:   link.Instance,
		Session:    link.Session,
		ArchiveKey: link.ArchiveKey,
		Object:     link.Object,
		Offset:     offset,
		ActivityID: activityID,
		PairName:   pair.Name,
	}, nil
}

// extractXML returns the content of the root element with every leaf kept as a string.
func extractXML(data []byte) (interface{}, error) {
	doc, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, err
	}
	if root, ok := doc["document"]; ok {
		return root, nil
	}
	if len(doc) == 1 {
		for _, root := range doc {
			return root, nil
		}
	}
	return map[string]interface{}(doc), nil
}

type jsonBatch struct {
	BatchID   interface{}    `json:"BatchID"`
	Documents []jsonDocument `json:"Documents"`
}

type jsonDocument struct {
	DocumentID   interface{}            `json:"DocumentID"`
	DocumentUUID interface{}            `json:"DocumentUUID"`
	Fields       map[string]interface{} `json:"Fields"`
}

// extractJSON plucks the batch header and the first document's fields.
// Numbers stay json.Number so large identifiers keep every digit.
func extractJSON(data []byte) (interface{}, error) {
	var batch jsonBatch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&batch); err != nil {
		return nil, err
	}
	if len(batch.Documents) == 0 {
		return nil, errors.New("no documents in batch")
	}
	doc := batch.Documents[0]
	field := func(name string) interface{} {
		if v, ok := doc.Fields[name]; ok && v != nil {
			return v
		}
		return ""
	}

	return map[string]interface{}{
		"BatchID":              orEmpty(batch.BatchID),
		"DocumentID":           orEmpty(doc.DocumentID),
		"DocumentUUID":         orEmpty(doc.DocumentUUID),
		"Material":             field("Material"),
		"Batch":                field("Batch"),
		"Production_Order":     field("Production_Order"),
		"Material_Description": field("Material_Description"),
		"Date_of_Manufacture":  NormalizeDate(field("Date_of_Manufacture")),
	}, nil
}

// NormalizeDate rewrites "05-Jan-2023" as "20230105". Anything that does not
// parse is returned unchanged.
func NormalizeDate(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	parsed, err := time.Parse(manufactureDateIn, s)
	if err != nil {
		return s
	}
	return parsed.Format(manufactureDateOut)
}

func orEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

// extractCSV maps every row onto the header's field names.
func extractCSV(data []byte) (interface{}, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	header := rows[0]
	for _, row := range rows[1:] {
		entry := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				entry[key] = row[i]
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
