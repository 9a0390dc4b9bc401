package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRenderJobRepository implements render.Repository using GORM. Every
// state change that workers race on (page counter, merge trigger, completion,
// failure recovery) is a single guarded UPDATE; the rows-affected count is
// the arbiter of who won.
type GormRenderJobRepository struct {
	db *gorm.DB
}

// NewGormRenderJobRepository creates a new GormRenderJobRepository
func NewGormRenderJobRepository(db *gorm.DB) *GormRenderJobRepository {
	return &GormRenderJobRepository{db: db}
}

// FindByID finds a job by ID, artifacts included
func (r *GormRenderJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*render.Job, error) {
	var model models.RenderJobModel
	if err := r.db.WithContext(ctx).
		Preload("Artifacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_index ASC, created_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByIDForOwner finds a job by ID scoped to its owner
func (r *GormRenderJobRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*render.Job, error) {
	var model models.RenderJobModel
	if err := r.db.WithContext(ctx).
		Preload("Artifacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_index ASC, created_at ASC")
		}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAllForOwner lists jobs belonging to an owner. Artifacts are not loaded
// for list queries.
func (r *GormRenderJobRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]render.Job, error) {
	var jobModels []models.RenderJobModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RenderJobModel{}).Where("owner_id = ?", ownerID), filter)

	if err := query.Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]render.Job, len(jobModels))
	for i, model := range jobModels {
		job, err := model.ToDomain()
		if err != nil {
			return nil, err
		}
		jobs[i] = *job
	}
	return jobs, nil
}

// CountForOwner counts jobs belonging to an owner
func (r *GormRenderJobRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.RenderJobModel{}).Where("owner_id = ?", ownerID), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save inserts a new job or updates its non-contended fields. The contended
// columns (completed_pages, stage, output_document_id) are deliberately not
// written here; they only move through the guarded operations below.
func (r *GormRenderJobRepository) Save(ctx context.Context, job *render.Job) error {
	model, err := models.RenderJobModelFromDomain(job)
	if err != nil {
		return err
	}
	model.Artifacts = nil
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":        model.Status,
				"error_message": model.ErrorMessage,
				"updated_at":    time.Now(),
				"version":       gorm.Expr("render_jobs.version + 1"),
			}),
		}).
		Create(model).Error
}

// AppendArtifact records a page artifact and bumps the completed-pages
// counter in one transaction. The increment is relative
// (`completed_pages + 1`), never an absolute write, so concurrent page
// workers cannot lose each other's completions. Returns the counter value
// after this increment.
func (r *GormRenderJobRepository) AppendArtifact(ctx context.Context, artifact *render.PageArtifact) (int, error) {
	var completed int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.RenderPageArtifactModelFromDomain(artifact)
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		var updated models.RenderJobModel
		result := tx.Model(&updated).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "completed_pages"}}}).
			Where("id = ?", artifact.JobID).
			Updates(map[string]interface{}{
				"completed_pages": gorm.Expr("completed_pages + 1"),
				"updated_at":      time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		completed = updated.CompletedPages
		return nil
	})
	return completed, err
}

// TryBeginMerge attempts the single conditional RENDERING → MERGING
// transition. When N page workers all observe the counter at total_pages
// and race here, the WHERE clause admits exactly one of them.
func (r *GormRenderJobRepository) TryBeginMerge(ctx context.Context, jobID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("id = ? AND output_document_id IS NULL AND stage IN ?",
			jobID, []string{string(render.StagePending), string(render.StageRendering)}).
		Updates(map[string]interface{}{
			"stage":      string(render.StageMerging),
			"status":     string(render.JobStatusProcessing),
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteMerge publishes the output document and marks the job completed.
// The `output_document_id IS NULL` guard makes a duplicate merge delivery a
// no-op: the second writer sees zero rows and the already-resolved job is
// left untouched.
func (r *GormRenderJobRepository) CompleteMerge(ctx context.Context, jobID, outputDocumentID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("id = ? AND output_document_id IS NULL", jobID).
		Updates(map[string]interface{}{
			"output_document_id": outputDocumentID,
			"stage":              string(render.StageCompleted),
			"status":             string(render.JobStatusCompleted),
			"error_message":      "",
			"updated_at":         time.Now(),
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		job, err := r.FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.IsResolved() {
			// Duplicate delivery after another worker already published.
			return nil
		}
		return shared.ErrInvalidState
	}
	return nil
}

// MarkFailed flips the job to failed unless the output document is already
// set. Failing an already-resolved job is silently ignored.
func (r *GormRenderJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("id = ? AND output_document_id IS NULL", jobID).
		Updates(map[string]interface{}{
			"status":        string(render.JobStatusFailed),
			"stage":         string(render.StageFailed),
			"error_message": reason,
			"updated_at":    time.Now(),
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// ReopenFailed performs the FAILED → RENDERING recovery flip, guarded on the
// current failed state and a null output document. Returns false when the
// job was not in a reopenable state.
func (r *GormRenderJobRepository) ReopenFailed(ctx context.Context, jobID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("id = ? AND output_document_id IS NULL AND (status = ? OR stage = ?)",
			jobID, string(render.JobStatusFailed), string(render.StageFailed)).
		Updates(map[string]interface{}{
			"status":        string(render.JobStatusProcessing),
			"stage":         string(render.StageRendering),
			"error_message": "",
			"updated_at":    time.Now(),
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchHealAttempt records the reconciler's heal timestamp for throttling.
// It deliberately leaves updated_at alone so a heal attempt does not reset
// the staleness clock.
func (r *GormRenderJobRepository) TouchHealAttempt(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("id = ?", jobID).
		UpdateColumn("last_heal_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies filter options to the query
func (r *GormRenderJobRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, RenderJobSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormRenderJobRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "stage":
			query = query.Where("stage = ?", value)
		}
	}
	return query
}

// Ensure GormRenderJobRepository implements render.Repository
var _ render.Repository = (*GormRenderJobRepository)(nil)
