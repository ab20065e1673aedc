package occupancy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AmountCents is an integer currency in cents.
type AmountCents int64

// NewAmountCents validates a non-negative amount.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// UserID identifies an account owner.
type UserID struct {
	value int64
}

// LotID identifies a parking lot.
type LotID struct {
	value int64
}

// SpotID identifies a parking spot.
type SpotID struct {
	value int64
}

// ReservationID identifies a spot reservation.
type ReservationID struct {
	value int64
}

// BookingID identifies a lot-level booking.
type BookingID struct {
	value int64
}

// NewUserID validates a user id.
func NewUserID(raw int64) (UserID, error) {
	if raw <= 0 {
		return UserID{}, fmt.Errorf("%w: must be positive", ErrInvalidUserID)
	}
	return UserID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id UserID) Int64() int64 {
	return id.value
}

// IsZero reports whether the id was never set.
func (id UserID) IsZero() bool {
	return id.value == 0
}

// NewLotID validates a lot id.
func NewLotID(raw int64) (LotID, error) {
	if raw <= 0 {
		return LotID{}, fmt.Errorf("%w: must be positive", ErrInvalidLotID)
	}
	return LotID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id LotID) Int64() int64 {
	return id.value
}

// IsZero reports whether the id was never set.
func (id LotID) IsZero() bool {
	return id.value == 0
}

// NewSpotID validates a spot id.
func NewSpotID(raw int64) (SpotID, error) {
	if raw <= 0 {
		return SpotID{}, fmt.Errorf("%w: must be positive", ErrInvalidSpotID)
	}
	return SpotID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id SpotID) Int64() int64 {
	return id.value
}

// IsZero reports whether the id was never set.
func (id SpotID) IsZero() bool {
	return id.value == 0
}

// NewReservationID validates a reservation id.
func NewReservationID(raw int64) (ReservationID, error) {
	if raw <= 0 {
		return ReservationID{}, fmt.Errorf("%w: must be positive", ErrInvalidReservationID)
	}
	return ReservationID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id ReservationID) Int64() int64 {
	return id.value
}

// NewBookingID validates a booking id.
func NewBookingID(raw int64) (BookingID, error) {
	if raw <= 0 {
		return BookingID{}, fmt.Errorf("%w: must be positive", ErrInvalidBookingID)
	}
	return BookingID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id BookingID) Int64() int64 {
	return id.value
}

// MetadataJSON stores arbitrary client metadata attached to a claim.
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates a metadata object (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	var object map[string]any
	if err := json.Unmarshal([]byte(normalized), &object); err != nil {
		return MetadataJSON{}, fmt.Errorf("%w: must be a json object", ErrInvalidMetadataJSON)
	}
	if object == nil {
		normalized = "{}"
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// SpotStatus is the occupancy state of a spot.
type SpotStatus string

const (
	SpotStatusAvailable SpotStatus = "A"
	SpotStatusOccupied  SpotStatus = "O"
)

// ParseSpotStatus validates a stored status code.
func ParseSpotStatus(raw string) (SpotStatus, error) {
	switch SpotStatus(raw) {
	case SpotStatusAvailable, SpotStatusOccupied:
		return SpotStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSpotStatus, raw)
	}
}

// String returns the status code.
func (status SpotStatus) String() string {
	return string(status)
}

// LotDetails holds the editable attributes of a lot.
type LotDetails struct {
	Name         string
	PricePerHour AmountCents
	Address      string
	PinCode      string
}

// NewLotDetails trims and validates lot attributes.
func NewLotDetails(name string, pricePerHourCents int64, address string, pinCode string) (LotDetails, error) {
	details := LotDetails{
		Name:    strings.TrimSpace(name),
		Address: strings.TrimSpace(address),
		PinCode: strings.TrimSpace(pinCode),
	}
	if details.Name == "" {
		return LotDetails{}, fmt.Errorf("%w: name is required", ErrInvalidLotDetails)
	}
	if details.Address == "" {
		return LotDetails{}, fmt.Errorf("%w: address is required", ErrInvalidLotDetails)
	}
	if details.PinCode == "" {
		return LotDetails{}, fmt.Errorf("%w: pin code is required", ErrInvalidLotDetails)
	}
	price, err := NewAmountCents(pricePerHourCents)
	if err != nil {
		return LotDetails{}, err
	}
	details.PricePerHour = price
	return details, nil
}

// Lot is a stored parking lot.
type Lot struct {
	ID          LotID
	Details     LotDetails
	MaxSpots    int
	SpotsFilled int
}

// AvailableSpots returns the unclaimed capacity of the lot.
func (lot Lot) AvailableSpots() int {
	available := lot.MaxSpots - lot.SpotsFilled
	if available < 0 {
		return 0
	}
	return available
}

// HasAvailableSpot reports whether another claim fits.
func (lot Lot) HasAvailableSpot() bool {
	return lot.SpotsFilled < lot.MaxSpots
}

// Spot is a stored parking spot.
type Spot struct {
	ID     SpotID
	LotID  LotID
	Status SpotStatus
}

// IsAvailable reports whether the spot can be reserved.
func (spot Spot) IsAvailable() bool {
	return spot.Status == SpotStatusAvailable
}

// Reservation is a user's claim on one spot.
type Reservation struct {
	ID             ReservationID
	UserID         UserID
	SpotID         SpotID
	LotID          LotID
	PricePerHour   AmountCents
	StartedUnixUTC int64
	EndedUnixUTC   int64
	Parked         bool
	Metadata       MetadataJSON
}

// IsActive reports whether the reservation has not been released.
func (reservation Reservation) IsActive() bool {
	return reservation.EndedUnixUTC == 0
}

// DurationHours returns the billable hours of the reservation.
func (reservation Reservation) DurationHours() int64 {
	return DurationHours(reservation.StartedUnixUTC, reservation.EndedUnixUTC)
}

// TotalPrice returns the billable amount at the captured hourly price.
func (reservation Reservation) TotalPrice() AmountCents {
	return TotalPrice(reservation.DurationHours(), reservation.PricePerHour)
}

// Booking is a user's claim on a lot as a whole.
type Booking struct {
	ID             BookingID
	UserID         UserID
	LotID          LotID
	PricePerHour   AmountCents
	StartedUnixUTC int64
	EndedUnixUTC   int64
	Metadata       MetadataJSON
}

// IsActive reports whether the booking has not been released.
func (booking Booking) IsActive() bool {
	return booking.EndedUnixUTC == 0
}

// DurationHours returns the billable hours of the booking.
func (booking Booking) DurationHours() int64 {
	return DurationHours(booking.StartedUnixUTC, booking.EndedUnixUTC)
}

// TotalPrice returns the billable amount at the captured hourly price.
func (booking Booking) TotalPrice() AmountCents {
	return TotalPrice(booking.DurationHours(), booking.PricePerHour)
}

// ParkingConfirmation reports the outcome of ConfirmParking.
type ParkingConfirmation struct {
	Reservation      Reservation
	AlreadyConfirmed bool
}

// History lists a user's claims, newest first.
type History struct {
	Reservations []Reservation
	Bookings     []Booking
}

// LotOccupancy summarizes one lot for the admin dashboard.
type LotOccupancy struct {
	Lot           Lot
	OccupiedSpots int
	TotalSpots    int
}

// LotFilter narrows lot listings. An empty query lists everything.
type LotFilter struct {
	Query string
}

// ReservationInput describes a reservation to persist.
type ReservationInput struct {
	UserID         UserID
	SpotID         SpotID
	LotID          LotID
	PricePerHour   AmountCents
	StartedUnixUTC int64
	Metadata       MetadataJSON
}

// BookingInput describes a booking to persist.
type BookingInput struct {
	UserID         UserID
	LotID          LotID
	PricePerHour   AmountCents
	StartedUnixUTC int64
	Metadata       MetadataJSON
}

// Store is the persistence contract used by Service.
// (gormstore implements this.)
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	CreateLot(ctx context.Context, details LotDetails, maxSpots int) (Lot, error)
	GetLot(ctx context.Context, lotID LotID) (Lot, error)
	UpdateLotDetails(ctx context.Context, lotID LotID, details LotDetails) (Lot, error)
	DeleteLot(ctx context.Context, lotID LotID) error
	ListLots(ctx context.Context, filter LotFilter) ([]Lot, error)
	IncrementSpotsFilled(ctx context.Context, lotID LotID) error
	DecrementSpotsFilled(ctx context.Context, lotID LotID) error
	ShrinkCapacity(ctx context.Context, lotID LotID) error
	CountActiveClaims(ctx context.Context, lotID LotID) (int64, error)

	CreateSpots(ctx context.Context, lotID LotID, count int) error
	GetSpot(ctx context.Context, spotID SpotID) (Spot, error)
	ListSpots(ctx context.Context, lotID LotID) ([]Spot, error)
	UpdateSpotStatus(ctx context.Context, spotID SpotID, from, to SpotStatus) error
	DeleteSpot(ctx context.Context, spotID SpotID) error

	CreateReservation(ctx context.Context, input ReservationInput) (Reservation, error)
	GetActiveReservationForUser(ctx context.Context, userID UserID) (Reservation, error)
	GetActiveReservation(ctx context.Context, userID UserID, spotID SpotID) (Reservation, error)
	MarkReservationParked(ctx context.Context, reservationID ReservationID) (bool, error)
	EndReservation(ctx context.Context, reservationID ReservationID, endedUnixUTC int64) (Reservation, error)
	ListReservations(ctx context.Context, userID UserID) ([]Reservation, error)

	CreateBooking(ctx context.Context, input BookingInput) (Booking, error)
	GetActiveBookingForUser(ctx context.Context, userID UserID) (Booking, error)
	EndBooking(ctx context.Context, bookingID BookingID, endedUnixUTC int64) (Booking, error)
	ListBookings(ctx context.Context, userID UserID) ([]Booking, error)
}
