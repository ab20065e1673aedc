package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents the users table.
type User struct {
	UserID       int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"not null;uniqueIndex:uniq_users_username"`
	DisplayName  string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Session mirrors the sessions table.
type Session struct {
	SessionID string    `gorm:"type:uuid;primaryKey"`
	UserID    int64     `gorm:"not null;index:idx_sessions_user"`
	Revoked   bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Session) TableName() string { return "sessions" }

func (session *Session) BeforeCreate(tx *gorm.DB) error {
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	return nil
}

// ParkingLot mirrors the parking_lots table.
type ParkingLot struct {
	LotID             int64     `gorm:"primaryKey;autoIncrement"`
	Name              string    `gorm:"not null;index:idx_parking_lots_name"`
	PricePerHourCents int64     `gorm:"not null"`
	Address           string    `gorm:"not null"`
	PinCode           string    `gorm:"not null;index:idx_parking_lots_pin_code"`
	MaxSpots          int       `gorm:"not null"`
	SpotsFilled       int       `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (ParkingLot) TableName() string { return "parking_lots" }

// ParkingSpot mirrors the parking_spots table.
type ParkingSpot struct {
	SpotID int64  `gorm:"primaryKey;autoIncrement"`
	LotID  int64  `gorm:"not null;index:idx_parking_spots_lot"`
	Status string `gorm:"type:varchar(1);not null"`
}

func (ParkingSpot) TableName() string { return "parking_spots" }

// Reservation mirrors the reservations table. EndedAt is null while active.
type Reservation struct {
	ReservationID     int64          `gorm:"primaryKey;autoIncrement"`
	UserID            int64          `gorm:"not null;index:idx_reservations_user_ended,priority:1"`
	SpotID            int64          `gorm:"not null;index:idx_reservations_spot_ended,priority:1"`
	LotID             int64          `gorm:"not null;index:idx_reservations_lot"`
	PricePerHourCents int64          `gorm:"not null"`
	StartedAt         time.Time      `gorm:"not null"`
	EndedAt           *time.Time     `gorm:"index:idx_reservations_user_ended,priority:2;index:idx_reservations_spot_ended,priority:2"`
	Parked            bool           `gorm:"not null;default:false"`
	Metadata          datatypes.JSON `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

// Booking mirrors the bookings table. EndedAt is null while active.
type Booking struct {
	BookingID         int64          `gorm:"primaryKey;autoIncrement"`
	UserID            int64          `gorm:"not null;index:idx_bookings_user_ended,priority:1"`
	LotID             int64          `gorm:"not null;index:idx_bookings_lot"`
	PricePerHourCents int64          `gorm:"not null"`
	StartedAt         time.Time      `gorm:"not null"`
	EndedAt           *time.Time     `gorm:"index:idx_bookings_user_ended,priority:2"`
	Metadata          datatypes.JSON `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&Session{},
		&ParkingLot{},
		&ParkingSpot{},
		&Reservation{},
		&Booking{},
	}
}
