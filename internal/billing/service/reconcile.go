package service

import (
	"context"

	"github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultReconcileBatchSize = 500

// ReconcileListings recomputes every listing obligation whose due date falls
// inside the due-soon window and commits the transitions the clock implies.
// A lapsed obligation gains a sticky suspension and the listing is hidden
// from search until a payment clears it.
func (s *Service) ReconcileListings(ctx context.Context, batchSize int) (domain.ReconcileResult, error) {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}

	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, domain.DueSoonWindowDays)

	candidates, err := s.listings.FindDueForReconcile(ctx, s.db, cutoff, batchSize)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{
		Scanned:     len(candidates),
		Transitions: map[string]int{},
	}
	metrics.Sweep().AddScanned(obligationTypeSubscription, len(candidates))

	for i := range candidates {
		id := candidates[i].ID
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			listing, err := s.listings.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if listing == nil {
				return nil
			}

			ob := &listing.Obligation
			derived := domain.DeriveSubscriptionStatus(ob.DueAt, now, ob.SuspendedAt)
			if derived == ob.Status {
				return nil
			}

			ob.Status = derived
			switch derived {
			case domain.SubscriptionStatusOverdue:
				if ob.GracePeriodEndsAt == nil {
					deadline := ob.DueAt.AddDate(0, 0, domain.GracePeriodDays)
					ob.GracePeriodEndsAt = &deadline
				}
			case domain.SubscriptionStatusSuspended:
				if ob.SuspendedAt == nil {
					suspendedAt := now
					reason := domain.SuspensionReasonOverdue
					ob.SuspendedAt = &suspendedAt
					ob.SuspensionReason = &reason
				}
			}

			if err := s.listings.SaveObligation(ctx, tx, listing); err != nil {
				return err
			}
			if derived == domain.SubscriptionStatusSuspended && listing.Active {
				if err := s.listings.SetActive(ctx, tx, listing.ID, false); err != nil {
					return err
				}
			}

			result.Transitions[string(derived)]++
			metrics.Sweep().IncTransition(obligationTypeSubscription, string(derived))
			if derived == domain.SubscriptionStatusSuspended {
				s.log.Warn("listing suspended for non-payment",
					zap.String("listing_id", listing.ID.String()),
					zap.Time("due_at", ob.DueAt),
				)
			}
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ReconcileLeases is the tenant-side mirror of ReconcileListings: a lapsed
// rent obligation gains a sticky termination.
func (s *Service) ReconcileLeases(ctx context.Context, batchSize int) (domain.ReconcileResult, error) {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}

	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, domain.DueSoonWindowDays)

	candidates, err := s.leases.FindDueForReconcile(ctx, s.db, cutoff, batchSize)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{
		Scanned:     len(candidates),
		Transitions: map[string]int{},
	}
	metrics.Sweep().AddScanned(obligationTypeLease, len(candidates))

	for i := range candidates {
		id := candidates[i].ID
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			lease, err := s.leases.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if lease == nil {
				return nil
			}

			ob := &lease.Obligation
			derived := domain.DeriveLeaseStatus(ob.DueAt, now, ob.TerminatedAt)
			if derived == ob.Status {
				return nil
			}

			ob.Status = derived
			switch derived {
			case domain.LeaseStatusOverdue:
				if ob.GracePeriodEndsAt == nil {
					deadline := ob.DueAt.AddDate(0, 0, domain.GracePeriodDays)
					ob.GracePeriodEndsAt = &deadline
				}
			case domain.LeaseStatusTerminated:
				if ob.TerminatedAt == nil {
					terminatedAt := now
					reason := domain.SuspensionReasonOverdue
					ob.TerminatedAt = &terminatedAt
					ob.TerminationReason = &reason
				}
			}

			if err := s.leases.SaveObligation(ctx, tx, lease); err != nil {
				return err
			}

			result.Transitions[string(derived)]++
			metrics.Sweep().IncTransition(obligationTypeLease, string(derived))
			if derived == domain.LeaseStatusTerminated {
				s.log.Warn("lease terminated for non-payment",
					zap.String("lease_id", lease.ID.String()),
					zap.Time("due_at", ob.DueAt),
				)
			}
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}
