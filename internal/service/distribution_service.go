package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs
type CreateDistributionRequest struct {
	NewspaperName string `json:"newspaper_name" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,min=1"`
	ReceiverID    string `json:"receiver_id" binding:"required"`
}

type RecordShipmentRequest struct {
	NewspaperName string `json:"newspaper_name" binding:"required"`
	ReceiverID    string `json:"receiver_id" binding:"required"`
	TotalSent     int    `json:"total_sent" binding:"required,min=1"`
}

type UpdateUnsoldRequest struct {
	UnsoldQuantity int `json:"unsold_quantity" binding:"min=0"`
}

type UpdateStatusRequest struct {
	Status           string `json:"status" binding:"required"`
	ReceivedQuantity int    `json:"received_quantity" binding:"min=0"`
}

// DistributionService is the hierarchy-consistent distribution ledger.
//
// The three mutation paths deliberately disagree on how ancestor records are
// touched, mirroring the system this replaces:
//   - CreateDistribution appends an audit entry onto one matching ancestor
//     record (best effort);
//   - UpdateStatus overwrites status/received_quantity on one ancestor
//     record per tier, while appending audit entries broadly;
//   - UpdateUnsold touches no ancestor records at all.
//
// Do not unify these without a product decision.
type DistributionService interface {
	CreateDistribution(ctx context.Context, senderID uuid.UUID, req CreateDistributionRequest) (*model.DistributionRecord, error)
	RecordShipment(ctx context.Context, senderID uuid.UUID, req RecordShipmentRequest) (*model.DistributionRecord, error)
	UpdateUnsold(ctx context.Context, vendorID, recordID uuid.UUID, req UpdateUnsoldRequest) (*model.DistributionRecord, error)
	UpdateStatus(ctx context.Context, receiverID, recordID uuid.UUID, req UpdateStatusRequest) (*model.DistributionRecord, *apperr.PropagationError, error)
	ListDistributions(ctx context.Context, actorID uuid.UUID, role string, page, limit int) ([]model.DistributionRecord, int64, error)
	AvailableNewspapers(ctx context.Context, actorID uuid.UUID, role string) ([]string, error)
}

type distributionService struct {
	distRepo  repository.DistributionRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

// NewDistributionService wires the ledger. hub may be nil (no event feed).
func NewDistributionService(
	distRepo repository.DistributionRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) DistributionService {
	return &distributionService{
		distRepo:  distRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		hub:       hub,
	}
}

// buildHierarchy resolves the denormalized ancestor snapshot for a new
// record by walking the actor directory upward from the sender. The snapshot
// holds the tiers from manufacturer through the sender's own tier; when the
// receiver is a vendor the vendor tier is included as well, since vendor
// records must be addressable by hierarchy.vendor_id later.
func (s *distributionService) buildHierarchy(ctx context.Context, sender *model.User, receiver *model.User) (model.Hierarchy, error) {
	var h model.Hierarchy

	switch sender.Role {
	case model.RoleManufacturer:
		h.ManufacturerID = &sender.ID

	case model.RoleDistrictDistributor:
		manufacturer, err := s.resolveSuperior(ctx, sender, model.RoleManufacturer)
		if err != nil {
			return h, err
		}
		h.ManufacturerID = &manufacturer.ID
		h.DistrictDistributorID = &sender.ID

	case model.RoleAreaDistributor:
		district, err := s.resolveSuperior(ctx, sender, model.RoleDistrictDistributor)
		if err != nil {
			return h, err
		}
		manufacturer, err := s.resolveSuperior(ctx, district, model.RoleManufacturer)
		if err != nil {
			return h, err
		}
		h.ManufacturerID = &manufacturer.ID
		h.DistrictDistributorID = &district.ID
		h.AreaDistributorID = &sender.ID
		h.VendorID = &receiver.ID

	default:
		return h, apperr.HierarchyViolation("role %q may not originate distributions", sender.Role)
	}

	return h, nil
}

// resolveSuperior follows actor.superior_id and checks the referenced actor
// carries wantRole. Dangling or wrong-role links surface here, at
// distribution-creation time, not at actor creation.
func (s *distributionService) resolveSuperior(ctx context.Context, actor *model.User, wantRole string) (*model.User, error) {
	if actor.SuperiorID == nil {
		return nil, apperr.HierarchyViolation("%s %s has no superior", actor.Role, actor.ID)
	}
	superior, err := s.userRepo.GetByID(ctx, *actor.SuperiorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.HierarchyViolation("%s %s references a missing superior", actor.Role, actor.ID)
		}
		return nil, fmt.Errorf("resolve superior: %w", err)
	}
	if superior.Role != wantRole {
		return nil, apperr.HierarchyViolation("%s %s must be associated with a %s, got %s", actor.Role, actor.ID, wantRole, superior.Role)
	}
	return superior, nil
}

// CreateDistribution is the primary creation path: full adjacency and chain
// validation, status=distributed, received set equal to sent, one audit entry
// tagged with the sender, and a best-effort append of the same entry onto the
// oldest matching ancestor-tier record.
func (s *distributionService) CreateDistribution(ctx context.Context, senderID uuid.UUID, req CreateDistributionRequest) (*model.DistributionRecord, error) {
	if req.NewspaperName == "" {
		return nil, apperr.InvalidInput("newspaper name is required")
	}
	if req.Quantity < 1 {
		return nil, apperr.InvalidInput("quantity must be at least 1")
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		return nil, apperr.InvalidInput("invalid receiver id")
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, apperr.NotFound("sender %s", senderID)
	}
	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, apperr.InvalidInput("receiver %s not found", receiverID)
	}

	wantRole, ok := model.NextRole[sender.Role]
	if !ok {
		return nil, apperr.HierarchyViolation("role %q may not originate distributions", sender.Role)
	}
	if receiver.Role != wantRole {
		return nil, apperr.HierarchyViolation("%s can only distribute to %s, receiver is %s", sender.Role, wantRole, receiver.Role)
	}

	hierarchy, err := s.buildHierarchy(ctx, sender, receiver)
	if err != nil {
		return nil, err
	}

	rec := &model.DistributionRecord{
		NewspaperName:    req.NewspaperName,
		Quantity:         req.Quantity,
		ReceivedQuantity: req.Quantity, // Initially, assume all are received
		SenderID:         sender.ID,
		ReceiverID:       receiver.ID,
		Status:           model.StatusDistributed,
		Hierarchy:        hierarchy,
		StatusUpdates: []model.StatusUpdate{{
			ActorID:          sender.ID,
			Status:           model.StatusDistributed,
			Quantity:         req.Quantity,
			ReceivedQuantity: req.Quantity,
		}},
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.distRepo.Create(txCtx, rec); err != nil {
			return fmt.Errorf("failed to create distribution record: %w", err)
		}
		return s.audit(txCtx, sender.ID, model.ActionCreateDistribution, rec.ID.String(), req.NewspaperName, req)
	})
	if err != nil {
		return nil, err
	}

	// Best-effort denormalization upward: append the same entry onto the
	// oldest still-distributed record for this newspaper sharing the
	// hierarchy key at the sender's tier. Not transactional with the
	// creation above.
	if sender.Role != model.RoleManufacturer {
		s.appendToAncestor(ctx, sender, rec)
	}

	s.broadcast("distribution.created", rec)
	return rec, nil
}

func (s *distributionService) appendToAncestor(ctx context.Context, sender *model.User, rec *model.DistributionRecord) {
	column := model.HierarchyColumn(sender.Role)
	key := rec.Hierarchy.KeyForRole(sender.Role)
	if column == "" || key == nil {
		return
	}

	parent, err := s.distRepo.FirstOpenByNewspaper(ctx, rec.NewspaperName, column, *key, model.StatusDistributed)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("ancestor append lookup failed for record %s: %v", rec.ID, err)
		}
		return
	}
	if parent.ID == rec.ID {
		return
	}

	entry := &model.StatusUpdate{
		RecordID:         parent.ID,
		ActorID:          sender.ID,
		Status:           model.StatusDistributed,
		Quantity:         rec.Quantity,
		ReceivedQuantity: rec.Quantity,
	}
	if err := s.distRepo.AppendStatusUpdate(ctx, entry); err != nil {
		log.Printf("ancestor append failed for record %s: %v", parent.ID, err)
	}
}

// RecordShipment is the legacy creation path: sender ships to a direct
// subordinate with no chain walk and no propagation; the record starts out
// pending. Distributors must address their own subordinates; manufacturers
// may address any district distributor.
func (s *distributionService) RecordShipment(ctx context.Context, senderID uuid.UUID, req RecordShipmentRequest) (*model.DistributionRecord, error) {
	if req.NewspaperName == "" {
		return nil, apperr.InvalidInput("newspaper name is required")
	}
	if req.TotalSent < 1 {
		return nil, apperr.InvalidInput("total_sent must be at least 1")
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		return nil, apperr.InvalidInput("invalid receiver id")
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, apperr.NotFound("sender %s", senderID)
	}
	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, apperr.InvalidInput("receiver %s not found", receiverID)
	}

	if _, ok := model.NextRole[sender.Role]; !ok {
		return nil, apperr.HierarchyViolation("role %q may not originate shipments", sender.Role)
	}
	if sender.Role != model.RoleManufacturer {
		if receiver.SuperiorID == nil || *receiver.SuperiorID != sender.ID {
			return nil, apperr.HierarchyViolation("receiver is not a direct subordinate of the sender")
		}
	}

	rec := &model.DistributionRecord{
		NewspaperName:    req.NewspaperName,
		Quantity:         req.TotalSent,
		ReceivedQuantity: req.TotalSent,
		SenderID:         sender.ID,
		ReceiverID:       receiver.ID,
		Status:           model.StatusPending,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.distRepo.Create(txCtx, rec); err != nil {
			return fmt.Errorf("failed to record shipment: %w", err)
		}
		return s.audit(txCtx, sender.ID, model.ActionRecordShipment, rec.ID.String(), req.NewspaperName, req)
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateUnsold is the vendor-facing close-out: sets the unsold count and
// marks the record delivered. This path never touches ancestor records.
func (s *distributionService) UpdateUnsold(ctx context.Context, vendorID, recordID uuid.UUID, req UpdateUnsoldRequest) (*model.DistributionRecord, error) {
	if req.UnsoldQuantity < 0 {
		return nil, apperr.InvalidInput("unsold quantity cannot be negative")
	}

	rec, err := s.distRepo.FindForVendor(ctx, recordID, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("newspaper record not found or already updated")
		}
		return nil, fmt.Errorf("lookup record: %w", err)
	}

	if req.UnsoldQuantity > rec.Quantity {
		return nil, apperr.InvalidInput("unsold quantity cannot be greater than received quantity")
	}

	rec.TotalUnsold = req.UnsoldQuantity
	rec.Status = model.StatusDelivered

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.distRepo.Save(txCtx, rec); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		return s.audit(txCtx, vendorID, model.ActionUpdateUnsold, rec.ID.String(), rec.NewspaperName, req)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("distribution.delivered", rec)
	return rec, nil
}

// UpdateStatus is the receiver-facing update with upward propagation. The
// primary record gets the new status, received quantity and an appended
// audit entry; every record sharing the hierarchy keys gets the same entry
// appended; then, tier by tier, one ancestor record has its
// status/received_quantity overwritten (no append).
//
// Propagation is a sequence of independent lookups and writes. A failure
// partway leaves some ancestors updated and others not; the returned
// PropagationError is a warning, never a rollback of the primary write.
func (s *distributionService) UpdateStatus(ctx context.Context, receiverID, recordID uuid.UUID, req UpdateStatusRequest) (*model.DistributionRecord, *apperr.PropagationError, error) {
	if !model.ValidStatus(req.Status) {
		return nil, nil, apperr.InvalidInput("unknown status %q", req.Status)
	}
	if req.ReceivedQuantity < 0 {
		return nil, nil, apperr.InvalidInput("received quantity cannot be negative")
	}

	rec, err := s.distRepo.FindForReceiver(ctx, recordID, receiverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("newspaper record not found")
		}
		return nil, nil, fmt.Errorf("lookup record: %w", err)
	}

	if req.ReceivedQuantity > rec.Quantity {
		return nil, nil, apperr.InvalidInput("received quantity cannot be greater than sent quantity")
	}

	rec.Status = req.Status
	rec.ReceivedQuantity = req.ReceivedQuantity

	entry := model.StatusUpdate{
		ActorID:          receiverID,
		Status:           req.Status,
		Quantity:         rec.Quantity,
		ReceivedQuantity: req.ReceivedQuantity,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.distRepo.Save(txCtx, rec); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		primary := entry
		primary.RecordID = rec.ID
		if err := s.distRepo.AppendStatusUpdate(txCtx, &primary); err != nil {
			return fmt.Errorf("failed to append status update: %w", err)
		}
		return s.audit(txCtx, receiverID, model.ActionUpdateStatus, rec.ID.String(), rec.NewspaperName, req)
	})
	if err != nil {
		return nil, nil, err
	}

	propErr := s.propagate(ctx, rec, entry)

	s.broadcast("distribution.status_updated", rec)
	return rec, propErr, nil
}

// propagate mirrors the status change onto ancestor records. Step order is
// innermost tier first. Lookup misses are skipped (there may simply be no
// corresponding ancestor record); lookup or write errors are collected.
func (s *distributionService) propagate(ctx context.Context, rec *model.DistributionRecord, entry model.StatusUpdate) *apperr.PropagationError {
	var failed []apperr.PropagationStep

	// Broad audit append: every record sharing the snapshot's
	// manufacturer/district/area keys receives a copy of the entry.
	if rec.Hierarchy.ManufacturerID != nil || rec.Hierarchy.DistrictDistributorID != nil || rec.Hierarchy.AreaDistributorID != nil {
		if _, err := s.distRepo.AppendStatusUpdateToMatching(ctx, rec.Hierarchy, entry); err != nil {
			failed = append(failed, apperr.PropagationStep{Tier: "audit", Reason: err.Error()})
		}
	}

	type step struct {
		tier string
		keys map[string]uuid.UUID
	}
	var steps []step

	if rec.Hierarchy.VendorID != nil && rec.Hierarchy.AreaDistributorID != nil {
		steps = append(steps, step{tier: model.RoleAreaDistributor, keys: map[string]uuid.UUID{
			"area_distributor_id": *rec.Hierarchy.AreaDistributorID,
			"vendor_id":           *rec.Hierarchy.VendorID,
		}})
	}
	if rec.Hierarchy.AreaDistributorID != nil && rec.Hierarchy.DistrictDistributorID != nil {
		steps = append(steps, step{tier: model.RoleDistrictDistributor, keys: map[string]uuid.UUID{
			"district_distributor_id": *rec.Hierarchy.DistrictDistributorID,
			"area_distributor_id":     *rec.Hierarchy.AreaDistributorID,
		}})
	}
	if rec.Hierarchy.DistrictDistributorID != nil && rec.Hierarchy.ManufacturerID != nil {
		steps = append(steps, step{tier: model.RoleManufacturer, keys: map[string]uuid.UUID{
			"manufacturer_id":         *rec.Hierarchy.ManufacturerID,
			"district_distributor_id": *rec.Hierarchy.DistrictDistributorID,
		}})
	}

	for _, st := range steps {
		target, err := s.distRepo.FirstByHierarchyKeys(ctx, st.keys)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			failed = append(failed, apperr.PropagationStep{Tier: st.tier, Reason: err.Error()})
			continue
		}
		if err := s.distRepo.OverwriteStatus(ctx, target.ID, rec.Status, rec.ReceivedQuantity); err != nil {
			failed = append(failed, apperr.PropagationStep{Tier: st.tier, Reason: err.Error()})
		}
	}

	if len(failed) == 0 {
		return nil
	}
	pe := &apperr.PropagationError{Failed: failed}
	log.Printf("record %s: %v", rec.ID, pe)
	return pe
}

func (s *distributionService) ListDistributions(ctx context.Context, actorID uuid.UUID, role string, page, limit int) ([]model.DistributionRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	if role == model.RoleAdmin {
		return s.distRepo.ListAll(ctx, page, limit)
	}

	column := model.HierarchyColumn(role)
	if column == "" {
		return nil, 0, apperr.InvalidInput("role %q cannot access distributions", role)
	}
	return s.distRepo.ListScoped(ctx, column, actorID, page, limit)
}

func (s *distributionService) AvailableNewspapers(ctx context.Context, actorID uuid.UUID, role string) ([]string, error) {
	column := model.HierarchyColumn(role)
	if column == "" {
		return nil, apperr.InvalidInput("role %q cannot list newspapers", role)
	}
	return s.distRepo.DistinctNewspaperNames(ctx, column, actorID)
}

func (s *distributionService) audit(ctx context.Context, userID uuid.UUID, action, entityID, entityName string, payload interface{}) error {
	details, _ := json.Marshal(payload)
	uid := userID
	entry := &model.AuditLog{
		UserID:     &uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *distributionService) broadcast(event string, rec *model.DistributionRecord) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ws.LedgerEvent{
		Event:    event,
		RecordID: rec.ID.String(),
		Status:   rec.Status,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
