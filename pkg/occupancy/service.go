package occupancy

import (
	"context"
	"errors"
	"fmt"
)

// Service contains the occupancy logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// BookLot claims one unit of a lot's capacity for the user without pinning a spot.
func (service *Service) BookLot(ctx context.Context, userID UserID, lotID LotID, metadata MetadataJSON) (Booking, error) {
	var booking Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		lot, err := transactionStore.GetLot(ctx, lotID)
		if err != nil {
			return err
		}
		if err := ensureNoActiveClaims(ctx, transactionStore, userID); err != nil {
			return err
		}
		if err := transactionStore.IncrementSpotsFilled(ctx, lot.ID); err != nil {
			return err
		}
		booking, err = transactionStore.CreateBooking(ctx, BookingInput{
			UserID:         userID,
			LotID:          lot.ID,
			PricePerHour:   lot.Details.PricePerHour,
			StartedUnixUTC: service.nowFn(),
			Metadata:       metadata,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationBookLot,
		UserID:    userID,
		LotID:     lotID,
		BookingID: booking.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return booking, nil
}

// ReleaseLot closes the user's active booking and frees its capacity unit.
func (service *Service) ReleaseLot(ctx context.Context, userID UserID) (Booking, error) {
	var booking Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		active, err := transactionStore.GetActiveBookingForUser(ctx, userID)
		if err != nil {
			return err
		}
		booking, err = transactionStore.EndBooking(ctx, active.ID, service.nowFn())
		if err != nil {
			return err
		}
		return transactionStore.DecrementSpotsFilled(ctx, booking.LotID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReleaseLot,
		UserID:    userID,
		LotID:     booking.LotID,
		BookingID: booking.ID,
		Amount:    booking.TotalPrice(),
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return booking, nil
}

// ReserveSpot occupies an available spot for the user at the lot's current hourly price.
func (service *Service) ReserveSpot(ctx context.Context, userID UserID, spotID SpotID, metadata MetadataJSON) (Reservation, error) {
	var reservation Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		spot, err := transactionStore.GetSpot(ctx, spotID)
		if err != nil {
			return err
		}
		if !spot.IsAvailable() {
			return ErrSpotOccupied
		}
		if err := ensureNoActiveClaims(ctx, transactionStore, userID); err != nil {
			return err
		}
		lot, err := transactionStore.GetLot(ctx, spot.LotID)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateSpotStatus(ctx, spot.ID, SpotStatusAvailable, SpotStatusOccupied); err != nil {
			return err
		}
		if err := transactionStore.IncrementSpotsFilled(ctx, lot.ID); err != nil {
			return err
		}
		reservation, err = transactionStore.CreateReservation(ctx, ReservationInput{
			UserID:         userID,
			SpotID:         spot.ID,
			LotID:          lot.ID,
			PricePerHour:   lot.Details.PricePerHour,
			StartedUnixUTC: service.nowFn(),
			Metadata:       metadata,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationReserveSpot,
		UserID:        userID,
		LotID:         reservation.LotID,
		SpotID:        spotID,
		ReservationID: reservation.ID,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return reservation, nil
}

// ConfirmParking marks the user's active reservation on the spot as parked.
// Confirming an already parked reservation is reported, not rejected.
func (service *Service) ConfirmParking(ctx context.Context, userID UserID, spotID SpotID) (ParkingConfirmation, error) {
	var confirmation ParkingConfirmation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetActiveReservation(ctx, userID, spotID)
		if err != nil {
			return err
		}
		changed, err := transactionStore.MarkReservationParked(ctx, reservation.ID)
		if err != nil {
			return err
		}
		reservation.Parked = true
		confirmation = ParkingConfirmation{Reservation: reservation, AlreadyConfirmed: !changed}
		return nil
	})
	entry := OperationLog{
		Operation:     operationConfirmParking,
		UserID:        userID,
		LotID:         confirmation.Reservation.LotID,
		SpotID:        spotID,
		ReservationID: confirmation.Reservation.ID,
		Error:         operationError,
	}
	if operationError == nil && confirmation.AlreadyConfirmed {
		entry.Status = operationStatusAlreadyConfirmed
	}
	service.logOperation(ctx, entry)
	if operationError != nil {
		return ParkingConfirmation{}, operationError
	}
	return confirmation, nil
}

// ReleaseSpot ends the user's active reservation on the spot and frees the spot.
func (service *Service) ReleaseSpot(ctx context.Context, userID UserID, spotID SpotID) (Reservation, error) {
	var reservation Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		active, err := transactionStore.GetActiveReservation(ctx, userID, spotID)
		if err != nil {
			return err
		}
		reservation, err = transactionStore.EndReservation(ctx, active.ID, service.nowFn())
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateSpotStatus(ctx, reservation.SpotID, SpotStatusOccupied, SpotStatusAvailable); err != nil {
			return err
		}
		return transactionStore.DecrementSpotsFilled(ctx, reservation.LotID)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationReleaseSpot,
		UserID:        userID,
		LotID:         reservation.LotID,
		SpotID:        spotID,
		ReservationID: reservation.ID,
		Amount:        reservation.TotalPrice(),
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return reservation, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// ensureNoActiveClaims enforces one active claim per user across reservations and bookings.
func ensureNoActiveClaims(ctx context.Context, transactionStore Store, userID UserID) error {
	_, err := transactionStore.GetActiveReservationForUser(ctx, userID)
	if err == nil {
		return ErrActiveReservationExists
	}
	if !errors.Is(err, ErrReservationNotFound) {
		return err
	}
	_, err = transactionStore.GetActiveBookingForUser(ctx, userID)
	if err == nil {
		return ErrActiveBookingExists
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return err
	}
	return nil
}
