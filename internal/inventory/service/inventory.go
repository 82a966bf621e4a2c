package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"propview/internal/common/logger"
	"propview/internal/hierarchy"
	"propview/internal/inventory/repository"
	"propview/internal/payment"
	"propview/internal/pricing"
)

var (
	ErrInvalidDuration = errors.New("duration_minutes must be 30 or 60")
	ErrAmountMismatch  = errors.New("amount does not match the token for this unit")
	ErrNoPrice         = errors.New("unit has no price")
	ErrPaymentInvalid  = errors.New("payment_invalid")
)

// Notifier is told about every committed change to a project.
type Notifier interface {
	HierarchyChanged(projectID string)
}

// ============================================================
// Inventory Service
// ============================================================

type Inventory struct {
	repo   *repository.Repository
	notify Notifier
	secret string
	now    func() time.Time
}

func NewInventory(repo *repository.Repository, notify Notifier, paymentSecret string) *Inventory {
	return &Inventory{
		repo:   repo,
		notify: notify,
		secret: paymentSecret,
		now:    time.Now,
	}
}

func (s *Inventory) Hierarchy(ctx context.Context, projectID, holder string) (*hierarchy.Project, error) {
	return s.repo.GetHierarchy(ctx, projectID, holder, s.now())
}

// Lock holds a unit for 30 or 60 minutes.
func (s *Inventory) Lock(ctx context.Context, unitID, holder string, minutes int) (hierarchy.Unit, error) {
	if minutes != 30 && minutes != 60 {
		return hierarchy.Unit{}, ErrInvalidDuration
	}

	u, projectID, err := s.repo.LockUnit(ctx, unitID, holder, time.Duration(minutes)*time.Minute, s.now())
	if err != nil {
		return hierarchy.Unit{}, err
	}

	logger.Log.WithFields(logrus.Fields{"unit": unitID, "project": projectID}).
		Infof("[LOCK] held for %d minutes", minutes)
	s.changed(projectID)
	return u, nil
}

// CreateOrder opens a token order. The amount must equal the token the
// price resolver quotes for the unit, so what the buyer saw is what is
// charged.
func (s *Inventory) CreateOrder(ctx context.Context, unitID, holder string, amount int64) (payment.Order, error) {
	now := s.now()
	u, projectID, err := s.repo.GetUnit(ctx, unitID, holder, now)
	if err != nil {
		return payment.Order{}, err
	}
	project, err := s.repo.GetHierarchy(ctx, projectID, holder, now)
	if err != nil {
		return payment.Order{}, err
	}

	quote := pricing.Resolve(u, project)
	if !quote.Available() {
		return payment.Order{}, ErrNoPrice
	}
	if quote.TokenPaise() != amount {
		return payment.Order{}, fmt.Errorf("%w: want %d, got %d", ErrAmountMismatch, quote.TokenPaise(), amount)
	}

	order, err := s.repo.CreateOrder(ctx, unitID, holder, amount, now)
	if err != nil {
		return payment.Order{}, err
	}
	logger.Log.WithFields(logrus.Fields{"unit": unitID, "order": order.ID}).
		Infof("[ORDER] created for %s", pricing.Display(amount))
	return order, nil
}

// Book verifies the payment signature and books the unit.
func (s *Inventory) Book(ctx context.Context, unitID, holder string, receipt payment.Receipt, amount int64) (hierarchy.Unit, error) {
	if err := payment.Verify(s.secret, receipt); err != nil {
		logger.Log.WithField("unit", unitID).Warn("[BOOK] signature rejected")
		return hierarchy.Unit{}, ErrPaymentInvalid
	}

	u, projectID, err := s.repo.BookUnit(ctx, unitID, holder, receipt, amount, s.now())
	if err != nil {
		return hierarchy.Unit{}, err
	}

	logger.Log.WithFields(logrus.Fields{"unit": unitID, "project": projectID, "payment": receipt.PaymentID}).
		Info("[BOOK] booked")
	s.changed(projectID)
	return u, nil
}

// SweepExpired releases lapsed locks and announces the affected projects.
func (s *Inventory) SweepExpired(ctx context.Context) error {
	projects, err := s.repo.ReleaseExpired(ctx, s.now())
	if err != nil {
		return err
	}
	for _, id := range projects {
		logger.Log.WithField("project", id).Info("[SWEEP] released expired holds")
		s.changed(id)
	}
	return nil
}

func (s *Inventory) changed(projectID string) {
	if s.notify != nil {
		s.notify.HierarchyChanged(projectID)
	}
}
