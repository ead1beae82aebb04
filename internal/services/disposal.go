package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kibetrono/slms/internal/database/queries"
	"github.com/kibetrono/slms/internal/models"
)

const (
	eligibleCountCachePrefix = "disposal:eligible_count:"
	eligibleCountCacheTTL    = 5 * time.Minute
)

// eligibleCountCacheKey keys the cached count by its cutoff date, so callers
// asking as of different dates never share an entry.
func eligibleCountCacheKey(cutoff time.Time) string {
	return eligibleCountCachePrefix + cutoff.Format("2006-01-02")
}

// DisposalQuerier is the storage surface the disposal scheduler depends on.
type DisposalQuerier interface {
	GetCopy(ctx context.Context, id int32) (queries.Copy, error)
	ListDisposalCandidates(ctx context.Context, arg queries.ListDisposalCandidatesParams) ([]queries.Copy, error)
	CountDisposalCandidates(ctx context.Context, cutoff pgtype.Date) (int64, error)
	DisposeCopy(ctx context.Context, arg queries.DisposeCopyParams) (queries.DisposalRecord, error)
	ListDisposalRecordsByBatch(ctx context.Context, batchID pgtype.UUID) ([]queries.DisposalRecord, error)
}

// DisposalCache caches derived disposal figures. Cache failures are never
// fatal; reads fall through to the store.
type DisposalCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type DisposalService struct {
	queries DisposalQuerier
	cache   DisposalCache
	policy  CirculationPolicy
	logger  *slog.Logger
}

func NewDisposalService(querier DisposalQuerier, cache DisposalCache, policy CirculationPolicy, logger *slog.Logger) *DisposalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisposalService{
		queries: querier,
		cache:   cache,
		policy:  policy,
		logger:  logger,
	}
}

// DisposalItemFailure records one copy a batch run could not dispose.
type DisposalItemFailure struct {
	CopyID int32  `json:"copy_id"`
	Error  string `json:"error"`
}

// DisposalBatchResult summarizes one auto-disposal run. The run itself
// succeeds even when individual items fail.
type DisposalBatchResult struct {
	BatchID   string                          `json:"batch_id"`
	Attempted int                             `json:"attempted"`
	Succeeded int                             `json:"succeeded"`
	Failures  []DisposalItemFailure           `json:"failures,omitempty"`
	Records   []models.DisposalRecordResponse `json:"records"`
}

func (s *DisposalService) cutoff(asOf time.Time) time.Time {
	return asOf.AddDate(0, 0, -s.policy.DisposalAgeDays)
}

// FindCandidates lists copies past the age threshold and not in active use,
// oldest acquisition first. A zero limit returns the full candidate set.
func (s *DisposalService) FindCandidates(ctx context.Context, limit int, asOf time.Time) ([]models.CopyResponse, error) {
	arg := queries.ListDisposalCandidatesParams{Cutoff: s.cutoff(asOf)}
	if limit > 0 {
		arg.Limit = uint(limit)
	}
	candidates, err := s.queries.ListDisposalCandidates(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list disposal candidates: %w", err)
	}

	responses := make([]models.CopyResponse, 0, len(candidates))
	for _, c := range candidates {
		responses = append(responses, *copyResponse(c))
	}
	return responses, nil
}

// EligibleCount reports how many copies are currently disposal-eligible. The
// figure is cached briefly since the report layer polls it.
func (s *DisposalService) EligibleCount(ctx context.Context, asOf time.Time) (int64, error) {
	cacheKey := eligibleCountCacheKey(s.cutoff(asOf))
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return count, nil
			}
		}
	}

	count, err := s.queries.CountDisposalCandidates(ctx, pgtype.Date{Time: s.cutoff(asOf), Valid: true})
	if err != nil {
		return 0, fmt.Errorf("failed to count disposal candidates: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, strconv.FormatInt(count, 10), eligibleCountCacheTTL); err != nil {
			s.logger.Warn("failed to cache disposal eligible count", slog.String("error", err.Error()))
		}
	}
	return count, nil
}

// ManualDispose retires a single copy on a librarian's request. The copy must
// meet the age threshold and must not be borrowed or already disposed.
func (s *DisposalService) ManualDispose(ctx context.Context, copyID int32, req models.ManualDisposeRequest, asOf time.Time) (*models.DisposalRecordResponse, error) {
	if req.Reason == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "disposal reason is required"}
	}

	cp, err := s.queries.GetCopy(ctx, copyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "copy", ID: copyID}
		}
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}

	switch cp.Status {
	case string(models.CopyStatusDisposed):
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  cp.Status,
			Expected: "not disposed",
		}
	case string(models.CopyStatusBorrowed):
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  cp.Status,
			Expected: "not borrowed",
		}
	}

	if cp.AcquisitionDate.Valid && cp.AcquisitionDate.Time.After(s.cutoff(asOf)) {
		return nil, &models.ValidationError{
			Field:   "copy_id",
			Message: fmt.Sprintf("copy has not reached the disposal age threshold of %d days", s.policy.DisposalAgeDays),
		}
	}

	record, err := s.queries.DisposeCopy(ctx, queries.DisposeCopyParams{
		CopyID:      copyID,
		Reason:      req.Reason,
		Description: pgtype.Text{String: req.Description, Valid: req.Description != ""},
		LibrarianID: pgtype.Int4{Int32: req.LibrarianID, Valid: req.LibrarianID != 0},
		DisposedAt:  pgtype.Timestamp{Time: asOf, Valid: true},
	})
	if err != nil {
		if errors.Is(err, queries.ErrCopyNotTransitionable) {
			// Lost a race since the status check above; surface current state.
			return nil, s.disposeConflict(ctx, copyID)
		}
		return nil, fmt.Errorf("failed to dispose copy: %w", err)
	}

	s.invalidateEligibleCount(ctx, asOf)
	return disposalRecordResponse(record), nil
}

// AutoDisposeBatch retires every eligible copy in acquisition-date order.
// Each candidate is its own unit of work: a failed item is logged and
// reported but never rolls back or stops the rest of the run.
func (s *DisposalService) AutoDisposeBatch(ctx context.Context, asOf time.Time) (*DisposalBatchResult, error) {
	candidates, err := s.queries.ListDisposalCandidates(ctx, queries.ListDisposalCandidatesParams{
		Cutoff: s.cutoff(asOf),
		Limit:  uint(s.policy.DisposalBatchLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list disposal candidates: %w", err)
	}

	batchID := uuid.New()
	result := &DisposalBatchResult{
		BatchID:   batchID.String(),
		Attempted: len(candidates),
		Records:   make([]models.DisposalRecordResponse, 0, len(candidates)),
	}

	for i, cp := range candidates {
		record, err := s.queries.DisposeCopy(ctx, queries.DisposeCopyParams{
			CopyID:       cp.ID,
			Reason:       models.DisposalReasonAged,
			Description:  pgtype.Text{String: "automatic disposal of aged copy", Valid: true},
			DisposedAt:   pgtype.Timestamp{Time: asOf, Valid: true},
			FifoPriority: pgtype.Int4{Int32: int32(i + 1), Valid: true},
			BatchID:      pgtype.UUID{Bytes: batchID, Valid: true},
		})
		if err != nil {
			s.logger.Error("disposal batch item failed",
				slog.String("batch_id", batchID.String()),
				slog.Int("copy_id", int(cp.ID)),
				slog.String("error", err.Error()))
			result.Failures = append(result.Failures, DisposalItemFailure{
				CopyID: cp.ID,
				Error:  err.Error(),
			})
			continue
		}
		result.Succeeded++
		result.Records = append(result.Records, *disposalRecordResponse(record))
	}

	if result.Succeeded > 0 {
		s.invalidateEligibleCount(ctx, asOf)
	}
	s.logger.Info("disposal batch finished",
		slog.String("batch_id", batchID.String()),
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", len(result.Failures)))
	return result, nil
}

// BatchRecords lists the audit entries written by one batch run in
// processing order.
func (s *DisposalService) BatchRecords(ctx context.Context, batchID string) ([]models.DisposalRecordResponse, error) {
	id, err := uuid.Parse(batchID)
	if err != nil {
		return nil, &models.ValidationError{Field: "batch_id", Message: "invalid batch id"}
	}

	records, err := s.queries.ListDisposalRecordsByBatch(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list batch records: %w", err)
	}

	responses := make([]models.DisposalRecordResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, *disposalRecordResponse(r))
	}
	return responses, nil
}

func (s *DisposalService) invalidateEligibleCount(ctx context.Context, asOf time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, eligibleCountCacheKey(s.cutoff(asOf))); err != nil {
		s.logger.Warn("failed to invalidate disposal eligible count", slog.String("error", err.Error()))
	}
}

func (s *DisposalService) disposeConflict(ctx context.Context, copyID int32) error {
	current := "unknown"
	if cp, err := s.queries.GetCopy(ctx, copyID); err == nil {
		current = cp.Status
	}
	return &models.StateConflictError{
		Entity:   "copy",
		ID:       copyID,
		Current:  current,
		Expected: "not disposed or borrowed",
	}
}

func copyResponse(c queries.Copy) *models.CopyResponse {
	return &models.CopyResponse{
		ID:              c.ID,
		Barcode:         c.Barcode,
		BookID:          c.BookID,
		Status:          models.CopyStatus(c.Status),
		AcquisitionDate: c.AcquisitionDate.Time,
		CreatedAt:       c.CreatedAt.Time,
		UpdatedAt:       c.UpdatedAt.Time,
	}
}

func disposalRecordResponse(d queries.DisposalRecord) *models.DisposalRecordResponse {
	resp := &models.DisposalRecordResponse{
		ID:         d.ID,
		CopyID:     d.CopyID,
		Reason:     d.Reason,
		DisposedAt: d.DisposedAt.Time,
		Status:     d.Status,
	}
	if d.Description.Valid {
		resp.Description = d.Description.String
	}
	if d.LibrarianID.Valid {
		id := d.LibrarianID.Int32
		resp.LibrarianID = &id
	}
	if d.FifoPriority.Valid {
		resp.FifoPriority = int(d.FifoPriority.Int32)
	}
	if d.BatchID.Valid {
		resp.BatchID = uuid.UUID(d.BatchID.Bytes).String()
	}
	return resp
}
