package occupancy

import (
	"context"
	"fmt"
	"strings"
)

// CreateLot persists a lot and exactly maxSpots available spots.
func (service *Service) CreateLot(ctx context.Context, principal Principal, details LotDetails, maxSpots int) (Lot, error) {
	if err := RequireAdmin(principal); err != nil {
		return Lot{}, err
	}
	if maxSpots < 1 {
		return Lot{}, fmt.Errorf("%w: must be at least 1", ErrInvalidMaxSpots)
	}
	var lot Lot
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		created, err := transactionStore.CreateLot(ctx, details, maxSpots)
		if err != nil {
			return err
		}
		if err := transactionStore.CreateSpots(ctx, created.ID, maxSpots); err != nil {
			return err
		}
		lot = created
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateLot,
		UserID:    principal.UserID,
		LotID:     lot.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Lot{}, operationError
	}
	return lot, nil
}

// UpdateLot edits the descriptive attributes and hourly price of a lot.
// Prices captured by existing claims are unaffected.
func (service *Service) UpdateLot(ctx context.Context, principal Principal, lotID LotID, details LotDetails) (Lot, error) {
	if err := RequireAdmin(principal); err != nil {
		return Lot{}, err
	}
	var lot Lot
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		updated, err := transactionStore.UpdateLotDetails(ctx, lotID, details)
		if err != nil {
			return err
		}
		lot = updated
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateLot,
		UserID:    principal.UserID,
		LotID:     lotID,
		Error:     operationError,
	})
	if operationError != nil {
		return Lot{}, operationError
	}
	return lot, nil
}

// DeleteLot removes a lot with its spots and claim history.
// Lots with an active reservation or booking are refused.
func (service *Service) DeleteLot(ctx context.Context, principal Principal, lotID LotID) error {
	if err := RequireAdmin(principal); err != nil {
		return err
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetLot(ctx, lotID); err != nil {
			return err
		}
		activeClaims, err := transactionStore.CountActiveClaims(ctx, lotID)
		if err != nil {
			return err
		}
		if activeClaims > 0 {
			return ErrLotHasActiveClaims
		}
		return transactionStore.DeleteLot(ctx, lotID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteLot,
		UserID:    principal.UserID,
		LotID:     lotID,
		Error:     operationError,
	})
	return operationError
}

// DeleteSpot removes a spot and its reservation history, shrinking the lot by one.
func (service *Service) DeleteSpot(ctx context.Context, principal Principal, spotID SpotID) error {
	if err := RequireAdmin(principal); err != nil {
		return err
	}
	var lotID LotID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		spot, err := transactionStore.GetSpot(ctx, spotID)
		if err != nil {
			return err
		}
		lotID = spot.LotID
		if spot.Status == SpotStatusOccupied {
			if err := transactionStore.DecrementSpotsFilled(ctx, spot.LotID); err != nil {
				return err
			}
		}
		if err := transactionStore.ShrinkCapacity(ctx, spot.LotID); err != nil {
			return err
		}
		return transactionStore.DeleteSpot(ctx, spot.ID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteSpot,
		UserID:    principal.UserID,
		LotID:     lotID,
		SpotID:    spotID,
		Error:     operationError,
	})
	return operationError
}

// GetLot returns a single lot.
func (service *Service) GetLot(ctx context.Context, lotID LotID) (Lot, error) {
	return service.store.GetLot(ctx, lotID)
}

// ListLots returns every lot ordered by id.
func (service *Service) ListLots(ctx context.Context) ([]Lot, error) {
	return service.store.ListLots(ctx, LotFilter{})
}

// SearchLots matches lots by name or pin code substring.
func (service *Service) SearchLots(ctx context.Context, principal Principal, query string) ([]Lot, error) {
	if err := RequireAdmin(principal); err != nil {
		return nil, err
	}
	return service.store.ListLots(ctx, LotFilter{Query: strings.TrimSpace(query)})
}

// GetSpot returns a single spot.
func (service *Service) GetSpot(ctx context.Context, spotID SpotID) (Spot, error) {
	return service.store.GetSpot(ctx, spotID)
}

// ListSpots returns the spots of an existing lot.
func (service *Service) ListSpots(ctx context.Context, lotID LotID) ([]Spot, error) {
	if _, err := service.store.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return service.store.ListSpots(ctx, lotID)
}

// History returns the user's reservations and bookings, newest first.
func (service *Service) History(ctx context.Context, userID UserID) (History, error) {
	reservations, err := service.store.ListReservations(ctx, userID)
	if err != nil {
		return History{}, err
	}
	bookings, err := service.store.ListBookings(ctx, userID)
	if err != nil {
		return History{}, err
	}
	return History{Reservations: reservations, Bookings: bookings}, nil
}

// OccupancySummary reports capacity and occupied spots per lot.
func (service *Service) OccupancySummary(ctx context.Context, principal Principal) ([]LotOccupancy, error) {
	if err := RequireAdmin(principal); err != nil {
		return nil, err
	}
	lots, err := service.store.ListLots(ctx, LotFilter{})
	if err != nil {
		return nil, err
	}
	summary := make([]LotOccupancy, 0, len(lots))
	for _, lot := range lots {
		spots, err := service.store.ListSpots(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		occupied := 0
		for _, spot := range spots {
			if spot.Status == SpotStatusOccupied {
				occupied++
			}
		}
		summary = append(summary, LotOccupancy{Lot: lot, OccupiedSpots: occupied, TotalSpots: len(spots)})
	}
	return summary, nil
}
