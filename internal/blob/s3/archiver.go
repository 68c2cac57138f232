package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// records, serializing them to JSONL, uploading the result to S3, and then
// deleting the archived rows. Upload happens strictly before deletion, so a
// failed upload never loses data.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	positions domain.PositionStore
	learnings domain.LearningStore
	audit     domain.AuditStore
}

// batchSize bounds one archive pass; larger backlogs drain over repeated
// runs.
const batchSize = 5000

// NewArchiver creates an ArchiveImpl. audit may be nil.
func NewArchiver(writer domain.BlobWriter, positions domain.PositionStore,
	learnings domain.LearningStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		positions: positions,
		learnings: learnings,
		audit:     audit,
	}
}

// ArchivePositions moves closed positions settled before the cutoff to
// archive/positions/YYYY-MM.jsonl and returns how many were archived.
func (a *ArchiveImpl) ArchivePositions(ctx context.Context, before time.Time) (int64, error) {
	positions, err := a.positions.ListClosedBefore(ctx, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(positions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions marshal: %w", err)
	}

	path := archivePath("positions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive positions upload: %w", err)
	}

	deleted, err := a.positions.DeleteClosedBefore(ctx, before)
	if err != nil {
		return int64(len(positions)), fmt.Errorf("s3blob: archive positions delete: %w", err)
	}

	a.logArchive(ctx, "archive.positions", path, deleted, before)
	return deleted, nil
}

// ArchiveLearnings moves learning records older than the cutoff to
// archive/learnings/YYYY-MM.jsonl and returns how many were archived.
func (a *ArchiveImpl) ArchiveLearnings(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.learnings.ListBefore(ctx, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive learnings query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive learnings marshal: %w", err)
	}

	path := archivePath("learnings", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive learnings upload: %w", err)
	}

	deleted, err := a.learnings.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive learnings delete: %w", err)
	}

	a.logArchive(ctx, "archive.learnings", path, deleted, before)
	return deleted, nil
}

// UploadReport stores a daily report as JSON at reports/YYYY-MM-DD.json.
func (a *ArchiveImpl) UploadReport(ctx context.Context, r domain.DailyReport) error {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal daily report: %w", err)
	}

	path := fmt.Sprintf("reports/%s.json", r.Date.Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload daily report: %w", err)
	}
	return nil
}

func (a *ArchiveImpl) logArchive(ctx context.Context, kind, path string, count int64, before time.Time) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Append(ctx, &domain.AuditEntry{
		Kind:   kind,
		Detail: fmt.Sprintf("archived %d records to %s", count, path),
		Fields: map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		},
		CreatedAt: time.Now().UTC(),
	})
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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
