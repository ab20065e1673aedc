package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintUsersUsername = "uniq_users_username"
	defaultMetadataJSON     = "{}"
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectBooking     = "booking"
	errorSubjectLot         = "lot"
	errorSubjectReservation = "reservation"
	errorSubjectSession     = "session"
	errorSubjectSpot        = "spot"
	errorSubjectUser        = "user"
	errorCodeCount          = "count"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeEnd            = "end"
	errorCodeGet            = "get"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeMarkParked     = "mark_parked"
	errorCodeUpdate         = "update"
	errorCodeUpdateCounter  = "update_counter"
	errorCodeUpdateStatus   = "update_status"
)

// Store implements occupancy.Store and accounts.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore occupancy.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateLot(ctx context.Context, details occupancy.LotDetails, maxSpots int) (occupancy.Lot, error) {
	model := ParkingLot{
		Name:              details.Name,
		PricePerHourCents: details.PricePerHour.Int64(),
		Address:           details.Address,
		PinCode:           details.PinCode,
		MaxSpots:          maxSpots,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeCreate, err)
	}
	return mapLotOrWrap(model)
}

func (store *Store) GetLot(ctx context.Context, lotID occupancy.LotID) (occupancy.Lot, error) {
	var model ParkingLot
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lot_id = ?", lotID.Int64()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, occupancy.ErrLotNotFound)
		}
		return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, err)
	}
	return mapLotOrWrap(model)
}

func (store *Store) UpdateLotDetails(ctx context.Context, lotID occupancy.LotID, details occupancy.LotDetails) (occupancy.Lot, error) {
	result := store.db.WithContext(ctx).
		Model(&ParkingLot{}).
		Where("lot_id = ?", lotID.Int64()).
		Updates(map[string]any{
			"name":                 details.Name,
			"price_per_hour_cents": details.PricePerHour.Int64(),
			"address":              details.Address,
			"pin_code":             details.PinCode,
		})
	if result.Error != nil {
		return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeUpdate, occupancy.ErrLotNotFound)
	}
	return store.GetLot(ctx, lotID)
}

// DeleteLot removes the lot together with its spots, reservations, and bookings.
func (store *Store) DeleteLot(ctx context.Context, lotID occupancy.LotID) error {
	database := store.db.WithContext(ctx)
	if err := database.Where("lot_id = ?", lotID.Int64()).Delete(&Reservation{}).Error; err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeDelete, err)
	}
	if err := database.Where("lot_id = ?", lotID.Int64()).Delete(&Booking{}).Error; err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeDelete, err)
	}
	if err := database.Where("lot_id = ?", lotID.Int64()).Delete(&ParkingSpot{}).Error; err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeDelete, err)
	}
	result := database.Where("lot_id = ?", lotID.Int64()).Delete(&ParkingLot{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectLot, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeDelete, occupancy.ErrLotNotFound)
	}
	return nil
}

func (store *Store) ListLots(ctx context.Context, filter occupancy.LotFilter) ([]occupancy.Lot, error) {
	query := store.db.WithContext(ctx).Model(&ParkingLot{}).Order("lot_id ASC")
	if needle := strings.TrimSpace(filter.Query); needle != "" {
		pattern := "%" + strings.ToLower(needle) + "%"
		query = query.Where("lower(name) LIKE ? OR pin_code LIKE ?", pattern, "%"+needle+"%")
	}
	var rows []ParkingLot
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
	}
	lots := make([]occupancy.Lot, 0, len(rows))
	for _, row := range rows {
		lot, err := mapLotOrWrap(row)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// IncrementSpotsFilled claims one unit of capacity, failing with ErrLotFull at max_spots.
func (store *Store) IncrementSpotsFilled(ctx context.Context, lotID occupancy.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&ParkingLot{}).
		Where("lot_id = ? AND spots_filled < max_spots", lotID.Int64()).
		Update("spots_filled", gorm.Expr("spots_filled + 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateCounter, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateCounter, occupancy.ErrLotFull)
	}
	return nil
}

// DecrementSpotsFilled frees one unit of capacity; the counter never drops below zero.
func (store *Store) DecrementSpotsFilled(ctx context.Context, lotID occupancy.LotID) error {
	err := store.db.WithContext(ctx).
		Model(&ParkingLot{}).
		Where("lot_id = ? AND spots_filled > 0", lotID.Int64()).
		Update("spots_filled", gorm.Expr("spots_filled - 1")).Error
	if err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateCounter, err)
	}
	return nil
}

func (store *Store) ShrinkCapacity(ctx context.Context, lotID occupancy.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&ParkingLot{}).
		Where("lot_id = ? AND max_spots > 0 AND spots_filled <= max_spots - 1", lotID.Int64()).
		Update("max_spots", gorm.Expr("max_spots - 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateCounter, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateCounter, occupancy.ErrLotOverCapacity)
	}
	return nil
}

func (store *Store) CountActiveClaims(ctx context.Context, lotID occupancy.LotID) (int64, error) {
	database := store.db.WithContext(ctx)
	var reservations int64
	if err := database.Model(&Reservation{}).Where("lot_id = ? AND ended_at IS NULL", lotID.Int64()).Count(&reservations).Error; err != nil {
		return 0, wrapStoreError(errorSubjectLot, errorCodeCount, err)
	}
	var bookings int64
	if err := database.Model(&Booking{}).Where("lot_id = ? AND ended_at IS NULL", lotID.Int64()).Count(&bookings).Error; err != nil {
		return 0, wrapStoreError(errorSubjectLot, errorCodeCount, err)
	}
	return reservations + bookings, nil
}

func (store *Store) CreateSpots(ctx context.Context, lotID occupancy.LotID, count int) error {
	if count <= 0 {
		return nil
	}
	spots := make([]ParkingSpot, count)
	for index := range spots {
		spots[index] = ParkingSpot{LotID: lotID.Int64(), Status: occupancy.SpotStatusAvailable.String()}
	}
	if err := store.db.WithContext(ctx).Create(&spots).Error; err != nil {
		return wrapStoreError(errorSubjectSpot, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetSpot(ctx context.Context, spotID occupancy.SpotID) (occupancy.Spot, error) {
	var model ParkingSpot
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("spot_id = ?", spotID.Int64()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Spot{}, wrapStoreError(errorSubjectSpot, errorCodeGet, occupancy.ErrSpotNotFound)
		}
		return occupancy.Spot{}, wrapStoreError(errorSubjectSpot, errorCodeGet, err)
	}
	spot, err := mapSpot(model)
	if err != nil {
		return occupancy.Spot{}, wrapStoreError(errorSubjectSpot, errorCodeInvalid, err)
	}
	return spot, nil
}

func (store *Store) ListSpots(ctx context.Context, lotID occupancy.LotID) ([]occupancy.Spot, error) {
	var rows []ParkingSpot
	err := store.db.WithContext(ctx).
		Where("lot_id = ?", lotID.Int64()).
		Order("spot_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSpot, errorCodeList, err)
	}
	spots := make([]occupancy.Spot, 0, len(rows))
	for _, row := range rows {
		spot, err := mapSpot(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSpot, errorCodeInvalid, err)
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

// UpdateSpotStatus moves a spot from one status to another, failing if it is no longer in from.
func (store *Store) UpdateSpotStatus(ctx context.Context, spotID occupancy.SpotID, from, to occupancy.SpotStatus) error {
	result := store.db.WithContext(ctx).
		Model(&ParkingSpot{}).
		Where("spot_id = ? AND status = ?", spotID.Int64(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectSpot, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSpot, errorCodeUpdateStatus, occupancy.ErrSpotStateChanged)
	}
	return nil
}

// DeleteSpot removes the spot and its reservation history.
func (store *Store) DeleteSpot(ctx context.Context, spotID occupancy.SpotID) error {
	database := store.db.WithContext(ctx)
	if err := database.Where("spot_id = ?", spotID.Int64()).Delete(&Reservation{}).Error; err != nil {
		return wrapStoreError(errorSubjectSpot, errorCodeDelete, err)
	}
	result := database.Where("spot_id = ?", spotID.Int64()).Delete(&ParkingSpot{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSpot, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSpot, errorCodeDelete, occupancy.ErrSpotNotFound)
	}
	return nil
}

func (store *Store) CreateReservation(ctx context.Context, input occupancy.ReservationInput) (occupancy.Reservation, error) {
	model := Reservation{
		UserID:            input.UserID.Int64(),
		SpotID:            input.SpotID.Int64(),
		LotID:             input.LotID.Int64(),
		PricePerHourCents: input.PricePerHour.Int64(),
		StartedAt:         unixToTime(input.StartedUnixUTC),
		Metadata:          datatypesJSON(input.Metadata.String()),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeCreate, err)
	}
	return mapReservationOrWrap(model)
}

func (store *Store) GetActiveReservationForUser(ctx context.Context, userID occupancy.UserID) (occupancy.Reservation, error) {
	return takeActiveReservation(store.db.WithContext(ctx).Where("user_id = ? AND ended_at IS NULL", userID.Int64()))
}

func (store *Store) GetActiveReservation(ctx context.Context, userID occupancy.UserID, spotID occupancy.SpotID) (occupancy.Reservation, error) {
	return takeActiveReservation(store.db.WithContext(ctx).Where("user_id = ? AND spot_id = ? AND ended_at IS NULL", userID.Int64(), spotID.Int64()))
}

// MarkReservationParked sets the parked flag and reports whether it changed.
func (store *Store) MarkReservationParked(ctx context.Context, reservationID occupancy.ReservationID) (bool, error) {
	database := store.db.WithContext(ctx)
	result := database.
		Model(&Reservation{}).
		Where("reservation_id = ? AND ended_at IS NULL AND parked = ?", reservationID.Int64(), false).
		Update("parked", true)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeMarkParked, result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	var active int64
	err := database.Model(&Reservation{}).
		Where("reservation_id = ? AND ended_at IS NULL", reservationID.Int64()).
		Count(&active).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectReservation, errorCodeMarkParked, err)
	}
	if active == 0 {
		return false, wrapStoreError(errorSubjectReservation, errorCodeMarkParked, occupancy.ErrReservationNotFound)
	}
	return false, nil
}

// EndReservation closes an active reservation and clears its parked flag.
func (store *Store) EndReservation(ctx context.Context, reservationID occupancy.ReservationID, endedUnixUTC int64) (occupancy.Reservation, error) {
	database := store.db.WithContext(ctx)
	result := database.
		Model(&Reservation{}).
		Where("reservation_id = ? AND ended_at IS NULL", reservationID.Int64()).
		Updates(map[string]any{
			"ended_at": unixToTime(endedUnixUTC),
			"parked":   false,
		})
	if result.Error != nil {
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeEnd, result.Error)
	}
	var model Reservation
	err := database.Where("reservation_id = ?", reservationID.Int64()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeEnd, occupancy.ErrReservationNotFound)
		}
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeEnd, err)
	}
	if result.RowsAffected == 0 {
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeEnd, occupancy.ErrReservationClosed)
	}
	return mapReservationOrWrap(model)
}

func (store *Store) ListReservations(ctx context.Context, userID occupancy.UserID) ([]occupancy.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Order("started_at DESC").
		Order("reservation_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]occupancy.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservationOrWrap(row)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func (store *Store) CreateBooking(ctx context.Context, input occupancy.BookingInput) (occupancy.Booking, error) {
	model := Booking{
		UserID:            input.UserID.Int64(),
		LotID:             input.LotID.Int64(),
		PricePerHourCents: input.PricePerHour.Int64(),
		StartedAt:         unixToTime(input.StartedUnixUTC),
		Metadata:          datatypesJSON(input.Metadata.String()),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
	}
	return mapBookingOrWrap(model)
}

func (store *Store) GetActiveBookingForUser(ctx context.Context, userID occupancy.UserID) (occupancy.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND ended_at IS NULL", userID.Int64()).
		Order("booking_id ASC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, occupancy.ErrBookingNotFound)
		}
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBookingOrWrap(model)
}

func (store *Store) EndBooking(ctx context.Context, bookingID occupancy.BookingID, endedUnixUTC int64) (occupancy.Booking, error) {
	database := store.db.WithContext(ctx)
	result := database.
		Model(&Booking{}).
		Where("booking_id = ? AND ended_at IS NULL", bookingID.Int64()).
		Update("ended_at", unixToTime(endedUnixUTC))
	if result.Error != nil {
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeEnd, result.Error)
	}
	var model Booking
	err := database.Where("booking_id = ?", bookingID.Int64()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeEnd, occupancy.ErrBookingNotFound)
		}
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeEnd, err)
	}
	if result.RowsAffected == 0 {
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeEnd, occupancy.ErrBookingClosed)
	}
	return mapBookingOrWrap(model)
}

func (store *Store) ListBookings(ctx context.Context, userID occupancy.UserID) ([]occupancy.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Order("started_at DESC").
		Order("booking_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	bookings := make([]occupancy.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := mapBookingOrWrap(row)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func takeActiveReservation(query *gorm.DB) (occupancy.Reservation, error) {
	var model Reservation
	err := query.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("reservation_id ASC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, occupancy.ErrReservationNotFound)
		}
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return mapReservationOrWrap(model)
}

func wrapStoreError(subject string, code string, err error) error {
	return occupancy.WrapError(errorOperationStore, subject, code, err)
}

func mapLotOrWrap(row ParkingLot) (occupancy.Lot, error) {
	lot, err := mapLot(row)
	if err != nil {
		return occupancy.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return lot, nil
}

func mapLot(row ParkingLot) (occupancy.Lot, error) {
	lotID, err := occupancy.NewLotID(row.LotID)
	if err != nil {
		return occupancy.Lot{}, err
	}
	details, err := occupancy.NewLotDetails(row.Name, row.PricePerHourCents, row.Address, row.PinCode)
	if err != nil {
		return occupancy.Lot{}, err
	}
	return occupancy.Lot{
		ID:          lotID,
		Details:     details,
		MaxSpots:    row.MaxSpots,
		SpotsFilled: row.SpotsFilled,
	}, nil
}

func mapSpot(row ParkingSpot) (occupancy.Spot, error) {
	spotID, err := occupancy.NewSpotID(row.SpotID)
	if err != nil {
		return occupancy.Spot{}, err
	}
	lotID, err := occupancy.NewLotID(row.LotID)
	if err != nil {
		return occupancy.Spot{}, err
	}
	status, err := occupancy.ParseSpotStatus(row.Status)
	if err != nil {
		return occupancy.Spot{}, err
	}
	return occupancy.Spot{ID: spotID, LotID: lotID, Status: status}, nil
}

func mapReservationOrWrap(row Reservation) (occupancy.Reservation, error) {
	reservation, err := mapReservation(row)
	if err != nil {
		return occupancy.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func mapReservation(row Reservation) (occupancy.Reservation, error) {
	reservationID, err := occupancy.NewReservationID(row.ReservationID)
	if err != nil {
		return occupancy.Reservation{}, err
	}
	userID, err := occupancy.NewUserID(row.UserID)
	if err != nil {
		return occupancy.Reservation{}, err
	}
	spotID, err := occupancy.NewSpotID(row.SpotID)
	if err != nil {
		return occupancy.Reservation{}, err
	}
	lotID, err := occupancy.NewLotID(row.LotID)
	if err != nil {
		return occupancy.Reservation{}, err
	}
	price, err := occupancy.NewAmountCents(row.PricePerHourCents)
	if err != nil {
		return occupancy.Reservation{}, err
	}
	metadata, err := occupancy.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return occupancy.Reservation{}, err
	}
	return occupancy.Reservation{
		ID:             reservationID,
		UserID:         userID,
		SpotID:         spotID,
		LotID:          lotID,
		PricePerHour:   price,
		StartedUnixUTC: row.StartedAt.Unix(),
		EndedUnixUTC:   timeOrZero(row.EndedAt),
		Parked:         row.Parked,
		Metadata:       metadata,
	}, nil
}

func mapBookingOrWrap(row Booking) (occupancy.Booking, error) {
	booking, err := mapBooking(row)
	if err != nil {
		return occupancy.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking, nil
}

func mapBooking(row Booking) (occupancy.Booking, error) {
	bookingID, err := occupancy.NewBookingID(row.BookingID)
	if err != nil {
		return occupancy.Booking{}, err
	}
	userID, err := occupancy.NewUserID(row.UserID)
	if err != nil {
		return occupancy.Booking{}, err
	}
	lotID, err := occupancy.NewLotID(row.LotID)
	if err != nil {
		return occupancy.Booking{}, err
	}
	price, err := occupancy.NewAmountCents(row.PricePerHourCents)
	if err != nil {
		return occupancy.Booking{}, err
	}
	metadata, err := occupancy.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return occupancy.Booking{}, err
	}
	return occupancy.Booking{
		ID:             bookingID,
		UserID:         userID,
		LotID:          lotID,
		PricePerHour:   price,
		StartedUnixUTC: row.StartedAt.Unix(),
		EndedUnixUTC:   timeOrZero(row.EndedAt),
		Metadata:       metadata,
	}, nil
}

func unixToTime(unixUTC int64) time.Time {
	return time.Unix(unixUTC, 0).UTC()
}

func timeOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
