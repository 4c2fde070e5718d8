// Package workflow owns the purchase request approval state machine.
package workflow

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/purchaseorder"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// Notifier receives workflow notifications. Implementations dispatch
// asynchronously; calls must never block or fail the workflow transaction.
type Notifier interface {
	IntermediateApproval(req *models.PurchaseRequest, approver models.Actor, nextRole string)
	FinalApproval(req *models.PurchaseRequest, approver models.Actor)
	Rejection(req *models.PurchaseRequest, approver models.Actor, comment string)
}

// BulkError records one failed id from a bulk approval.
type BulkError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BulkResult is the partial-failure outcome of BulkApprove.
type BulkResult struct {
	ApprovedIDs []string    `json:"approved"`
	Errors      []BulkError `json:"errors"`
}

// Engine advances purchase requests through sequential approval levels.
// Transitions run one at a time per request: an exclusive per-request lock
// wraps the whole transaction, and final approval generates the purchase
// order inside that same transaction.
type Engine struct {
	db            *database.DB
	requestRepo   *repository.RequestRepository
	approvalRepo  *repository.ApprovalRepository
	generator     *purchaseorder.Generator
	notifier      Notifier
	locks         *requestLocks
	logger        *zap.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	approvalRepo *repository.ApprovalRepository,
	generator *purchaseorder.Generator,
	notifier Notifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:           db,
		requestRepo:  requestRepo,
		approvalRepo: approvalRepo,
		generator:    generator,
		notifier:     notifier,
		locks:        newRequestLocks(),
		logger:       logger,
	}
}

// Approve records the actor's approval at the request's current level and
// advances the workflow. When the last required level is cleared the
// request becomes APPROVED and the purchase order is generated in the same
// transaction; a generation failure rolls the approval back. Notifications
// go out only after commit.
func (e *Engine) Approve(ctx context.Context, requestID string, actor models.Actor, comment string) (*models.PurchaseRequest, error) {
	release := e.locks.Acquire(requestID)
	defer release()

	var req *models.PurchaseRequest
	var notify func()

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		req, err = e.loadPending(tx, requestID, "approved")
		if err != nil {
			return err
		}

		level := req.CurrentApprovalLevel
		if err := authorizeLevel(actor, level); err != nil {
			return err
		}

		approval := &models.Approval{
			RequestID: requestID,
			Approver:  actor.ID,
			Level:     level,
			Decision:  models.DecisionApproved,
			Comment:   NormalizeComment(comment),
		}
		if err := e.approvalRepo.Create(tx, approval); err != nil {
			return err
		}

		remaining := req.RequiredApprovalLevels - 1
		if remaining < 0 {
			remaining = 0
		}
		req.RequiredApprovalLevels = remaining

		if remaining == 0 {
			req.Status = models.StatusApproved
			req.CurrentApprovalLevel = level
			if _, err := e.generator.Ensure(tx, req); err != nil {
				return err
			}
			if err := e.requestRepo.UpdateWorkflowState(tx, req); err != nil {
				return err
			}
			approved := *req
			notify = func() { e.notifier.FinalApproval(&approved, actor) }
		} else {
			req.CurrentApprovalLevel = level + 1
			if err := e.requestRepo.UpdateWorkflowState(tx, req); err != nil {
				return err
			}
			advanced := *req
			nextRole := RoleByLevel[advanced.CurrentApprovalLevel]
			notify = func() { e.notifier.IntermediateApproval(&advanced, actor, nextRole) }
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Request approval recorded",
		zap.String("request_id", requestID),
		zap.String("approver", actor.ID),
		zap.String("status", req.Status),
		zap.Int("remaining_levels", req.RequiredApprovalLevels))

	if notify != nil {
		notify()
	}
	return req, nil
}

// Reject records the actor's rejection at the current level and terminates
// the workflow. No purchase order is ever generated for a rejected
// request.
func (e *Engine) Reject(ctx context.Context, requestID string, actor models.Actor, comment string) (*models.PurchaseRequest, error) {
	release := e.locks.Acquire(requestID)
	defer release()

	var req *models.PurchaseRequest
	cleanComment := NormalizeComment(comment)

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		req, err = e.loadPending(tx, requestID, "rejected")
		if err != nil {
			return err
		}

		level := req.CurrentApprovalLevel
		if err := authorizeLevel(actor, level); err != nil {
			return err
		}

		approval := &models.Approval{
			RequestID: requestID,
			Approver:  actor.ID,
			Level:     level,
			Decision:  models.DecisionRejected,
			Comment:   cleanComment,
		}
		if err := e.approvalRepo.Create(tx, approval); err != nil {
			return err
		}

		req.Status = models.StatusRejected
		req.RequiredApprovalLevels = 0
		return e.requestRepo.UpdateWorkflowState(tx, req)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Request rejected",
		zap.String("request_id", requestID),
		zap.String("approver", actor.ID))

	rejected := *req
	e.notifier.Rejection(&rejected, actor, cleanComment)
	return req, nil
}

// BulkApprove applies Approve to each id independently. Workflow
// violations are collected per id without aborting the remaining ids;
// infrastructure failures abort and surface as the returned error.
func (e *Engine) BulkApprove(ctx context.Context, requestIDs []string, actor models.Actor, comment string) (*BulkResult, error) {
	result := &BulkResult{ApprovedIDs: []string{}, Errors: []BulkError{}}

	for _, id := range requestIDs {
		req, err := e.Approve(ctx, id, actor, comment)
		if err != nil {
			var ve *ViolationError
			if errors.As(err, &ve) {
				result.Errors = append(result.Errors, BulkError{ID: id, Message: ve.Message})
				continue
			}
			return nil, err
		}
		result.ApprovedIDs = append(result.ApprovedIDs, req.ID)
	}
	return result, nil
}

// loadPending fetches the request under the caller's transaction and
// enforces the PENDING precondition.
func (e *Engine) loadPending(tx *sql.Tx, requestID, action string) (*models.PurchaseRequest, error) {
	req, err := e.requestRepo.GetByID(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, violation("purchase request not found: " + requestID)
	}
	if req.Status != models.StatusPending {
		return nil, violation("only pending requests can be " + action)
	}
	return req, nil
}
