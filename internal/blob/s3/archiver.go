package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"
	dayLayout        = "2006-01-02"
	defaultPrefix    = "archive/prices"
)

// ArchiveImpl implements domain.Archiver. It reads an item's full history
// from a PriceStore and uploads it as one JSONL object per item and day:
//
//	{prefix}/{item_id}/{YYYY-MM-DD}.jsonl
//
// Archiving the same item twice on one day overwrites that day's object.
// Records are never deleted from the store.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	store  domain.PriceStore
	prefix string
}

// NewArchiver creates an ArchiveImpl. reader may be nil when listing and
// loading archives is not needed. An empty prefix selects "archive/prices".
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, store domain.PriceStore, prefix string) *ArchiveImpl {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ArchiveImpl{writer: writer, reader: reader, store: store, prefix: prefix}
}

// ArchiveItem uploads every record held for itemID and returns how many were
// written. Nothing is uploaded for an item without history.
func (a *ArchiveImpl) ArchiveItem(ctx context.Context, itemID uint32, at time.Time) (int64, error) {
	records, err := a.store.ForItem(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive item %d query: %w", itemID, err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive item %d marshal: %w", itemID, err)
	}

	key := a.archivePath(itemID, at)
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive item %d upload: %w", itemID, err)
	}

	return int64(len(records)), nil
}

// Archives lists the archive objects stored for itemID.
func (a *ArchiveImpl) Archives(ctx context.Context, itemID uint32) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, errors.New("s3blob: archive reader not configured")
	}
	infos, err := a.reader.List(ctx, a.itemPrefix(itemID)+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives for item %d: %w", itemID, err)
	}
	return infos, nil
}

// Load reads back the records archived for itemID on day.
func (a *ArchiveImpl) Load(ctx context.Context, itemID uint32, day time.Time) ([]domain.PriceRecord, error) {
	if a.reader == nil {
		return nil, errors.New("s3blob: archive reader not configured")
	}
	body, err := a.reader.Get(ctx, a.archivePath(itemID, day))
	if err != nil {
		return nil, fmt.Errorf("s3blob: load archive for item %d: %w", itemID, err)
	}
	defer body.Close()

	records := []domain.PriceRecord{}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec domain.PriceRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("s3blob: load archive for item %d line %d: %w", itemID, line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: load archive for item %d: %w", itemID, err)
	}
	return records, nil
}

func (a *ArchiveImpl) itemPrefix(itemID uint32) string {
	return path.Join(a.prefix, strconv.FormatUint(uint64(itemID), 10))
}

// archivePath builds the object key for one item and day, in UTC.
//
//	archive/prices/19721/2025-01-31.jsonl
func (a *ArchiveImpl) archivePath(itemID uint32, at time.Time) string {
	return a.itemPrefix(itemID) + "/" + at.UTC().Format(dayLayout) + ".jsonl"
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
