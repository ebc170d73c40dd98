package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DistributionRepository defines data access for the distribution ledger.
// Lookup methods that can match several records resolve ambiguity by
// creation order (created_at, id ascending) so propagation targets are
// deterministic.
type DistributionRepository interface {
	Create(ctx context.Context, rec *model.DistributionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.DistributionRecord, error)
	FindForVendor(ctx context.Context, id, vendorID uuid.UUID) (*model.DistributionRecord, error)
	FindForReceiver(ctx context.Context, id, receiverID uuid.UUID) (*model.DistributionRecord, error)
	Save(ctx context.Context, rec *model.DistributionRecord) error

	AppendStatusUpdate(ctx context.Context, entry *model.StatusUpdate) error
	AppendStatusUpdateToMatching(ctx context.Context, h model.Hierarchy, entry model.StatusUpdate) (int, error)
	FirstByHierarchyKeys(ctx context.Context, keys map[string]uuid.UUID) (*model.DistributionRecord, error)
	FirstOpenByNewspaper(ctx context.Context, newspaperName, column string, actorID uuid.UUID, status string) (*model.DistributionRecord, error)
	OverwriteStatus(ctx context.Context, id uuid.UUID, status string, receivedQty int) error

	ListScoped(ctx context.Context, column string, actorID uuid.UUID, page, limit int) ([]model.DistributionRecord, int64, error)
	ListAll(ctx context.Context, page, limit int) ([]model.DistributionRecord, int64, error)
	ListScopedRange(ctx context.Context, column string, actorID uuid.UUID, start, end time.Time) ([]model.DistributionRecord, error)
	DistinctNewspaperNames(ctx context.Context, column string, actorID uuid.UUID) ([]string, error)
}

type distributionRepository struct {
	db *gorm.DB
}

// NewDistributionRepository returns a new instance of DistributionRepository
func NewDistributionRepository(db *gorm.DB) DistributionRepository {
	return &distributionRepository{db: db}
}

func (r *distributionRepository) Create(ctx context.Context, rec *model.DistributionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	for i := range rec.StatusUpdates {
		if rec.StatusUpdates[i].ID == uuid.Nil {
			rec.StatusUpdates[i].ID = uuid.New()
		}
	}
	return GetDB(ctx, r.db).Create(rec).Error
}

func (r *distributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DistributionRecord, error) {
	var rec model.DistributionRecord
	if err := GetDB(ctx, r.db).Preload("StatusUpdates").First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindForVendor locates a record addressable by the vendor unsold-update
// path: owned via the hierarchy snapshot and not yet delivered or cancelled.
func (r *distributionRepository) FindForVendor(ctx context.Context, id, vendorID uuid.UUID) (*model.DistributionRecord, error) {
	var rec model.DistributionRecord
	err := GetDB(ctx, r.db).
		Where("id = ? AND vendor_id = ? AND status IN ?", id, vendorID, []string{model.StatusPending, model.StatusDistributed}).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *distributionRepository) FindForReceiver(ctx context.Context, id, receiverID uuid.UUID) (*model.DistributionRecord, error) {
	var rec model.DistributionRecord
	err := GetDB(ctx, r.db).
		Where("id = ? AND receiver_id = ?", id, receiverID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *distributionRepository) Save(ctx context.Context, rec *model.DistributionRecord) error {
	return GetDB(ctx, r.db).Omit("StatusUpdates").Save(rec).Error
}

func (r *distributionRepository) AppendStatusUpdate(ctx context.Context, entry *model.StatusUpdate) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return GetDB(ctx, r.db).Create(entry).Error
}

// AppendStatusUpdateToMatching appends a copy of entry to every record whose
// hierarchy snapshot matches the non-nil keys of h. Returns the number of
// records touched.
func (r *distributionRepository) AppendStatusUpdateToMatching(ctx context.Context, h model.Hierarchy, entry model.StatusUpdate) (int, error) {
	db := GetDB(ctx, r.db).Model(&model.DistributionRecord{})
	db = applyHierarchyFilter(db, h)

	var ids []uuid.UUID
	if err := db.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	for _, id := range ids {
		row := entry
		row.ID = uuid.New()
		row.RecordID = id
		if err := GetDB(ctx, r.db).Create(&row).Error; err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// FirstByHierarchyKeys returns the oldest record matching every given
// hierarchy column. The ledger does not error on ambiguity; first match by
// creation order wins.
func (r *distributionRepository) FirstByHierarchyKeys(ctx context.Context, keys map[string]uuid.UUID) (*model.DistributionRecord, error) {
	db := GetDB(ctx, r.db)
	for column, id := range keys {
		db = db.Where(column+" = ?", id)
	}

	var rec model.DistributionRecord
	if err := db.Order("created_at asc, id asc").First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FirstOpenByNewspaper returns the oldest record for the given newspaper in
// the given status whose hierarchy key at column matches actorID. Used by
// the creation-time append propagation onto ancestor records.
func (r *distributionRepository) FirstOpenByNewspaper(ctx context.Context, newspaperName, column string, actorID uuid.UUID, status string) (*model.DistributionRecord, error) {
	var rec model.DistributionRecord
	err := GetDB(ctx, r.db).
		Where("newspaper_name = ? AND status = ?", newspaperName, status).
		Where(column+" = ?", actorID).
		Order("created_at asc, id asc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// OverwriteStatus is the propagation write: a direct field overwrite with no
// audit-entry append, asymmetric with the originating record on purpose.
func (r *distributionRepository) OverwriteStatus(ctx context.Context, id uuid.UUID, status string, receivedQty int) error {
	return GetDB(ctx, r.db).Model(&model.DistributionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "received_quantity": receivedQty}).Error
}

func (r *distributionRepository) ListScoped(ctx context.Context, column string, actorID uuid.UUID, page, limit int) ([]model.DistributionRecord, int64, error) {
	db := GetDB(ctx, r.db).Model(&model.DistributionRecord{}).Where(column+" = ?", actorID)
	return r.list(ctx, db, page, limit)
}

func (r *distributionRepository) ListAll(ctx context.Context, page, limit int) ([]model.DistributionRecord, int64, error) {
	return r.list(ctx, GetDB(ctx, r.db).Model(&model.DistributionRecord{}), page, limit)
}

func (r *distributionRepository) list(ctx context.Context, db *gorm.DB, page, limit int) ([]model.DistributionRecord, int64, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []model.DistributionRecord
	offset := (page - 1) * limit
	err := db.
		Preload("Sender").
		Preload("Receiver").
		Preload("StatusUpdates").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *distributionRepository) ListScopedRange(ctx context.Context, column string, actorID uuid.UUID, start, end time.Time) ([]model.DistributionRecord, error) {
	var recs []model.DistributionRecord
	err := GetDB(ctx, r.db).
		Where(column+" = ?", actorID).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *distributionRepository) DistinctNewspaperNames(ctx context.Context, column string, actorID uuid.UUID) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Model(&model.DistributionRecord{}).
		Where(column+" = ?", actorID).
		Distinct("newspaper_name").
		Order("newspaper_name").
		Pluck("newspaper_name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// applyHierarchyFilter adds a WHERE clause for every tier present in h,
// mirroring how the record's own snapshot scopes its ancestor set.
func applyHierarchyFilter(db *gorm.DB, h model.Hierarchy) *gorm.DB {
	if h.ManufacturerID != nil {
		db = db.Where("manufacturer_id = ?", *h.ManufacturerID)
	}
	if h.DistrictDistributorID != nil {
		db = db.Where("district_distributor_id = ?", *h.DistrictDistributorID)
	}
	if h.AreaDistributorID != nil {
		db = db.Where("area_distributor_id = ?", *h.AreaDistributorID)
	}
	return db
}
