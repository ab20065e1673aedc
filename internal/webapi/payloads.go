package webapi

import (
	"encoding/json"

	"github.com/MarkoPoloResearchLab/parking/internal/accounts"
	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type lotRequest struct {
	Name              string `json:"name"`
	PricePerHourCents int64  `json:"price_per_hour_cents"`
	Address           string `json:"address"`
	PinCode           string `json:"pin_code"`
	MaxSpots          int    `json:"max_spots"`
}

type claimRequest struct {
	Metadata json.RawMessage `json:"metadata"`
}

type userPayload struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	IsAdmin        bool   `json:"is_admin"`
	CreatedUnixUTC int64  `json:"created_unix_utc,omitempty"`
}

type lotPayload struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PricePerHourCents int64  `json:"price_per_hour_cents"`
	Address           string `json:"address"`
	PinCode           string `json:"pin_code"`
	MaxSpots          int    `json:"max_spots"`
	SpotsFilled       int    `json:"spots_filled"`
	AvailableSpots    int    `json:"available_spots"`
}

type spotPayload struct {
	ID     int64  `json:"id"`
	LotID  int64  `json:"lot_id"`
	Status string `json:"status"`
}

type reservationPayload struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	SpotID            int64           `json:"spot_id"`
	LotID             int64           `json:"lot_id"`
	PricePerHourCents int64           `json:"price_per_hour_cents"`
	StartedUnixUTC    int64           `json:"started_unix_utc"`
	EndedUnixUTC      int64           `json:"ended_unix_utc,omitempty"`
	Parked            bool            `json:"parked"`
	Active            bool            `json:"active"`
	DurationHours     int64           `json:"duration_hours"`
	TotalCents        int64           `json:"total_cents"`
	Metadata          json.RawMessage `json:"metadata"`
}

type bookingPayload struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	LotID             int64           `json:"lot_id"`
	PricePerHourCents int64           `json:"price_per_hour_cents"`
	StartedUnixUTC    int64           `json:"started_unix_utc"`
	EndedUnixUTC      int64           `json:"ended_unix_utc,omitempty"`
	Active            bool            `json:"active"`
	DurationHours     int64           `json:"duration_hours"`
	TotalCents        int64           `json:"total_cents"`
	Metadata          json.RawMessage `json:"metadata"`
}

type occupancyPayload struct {
	Lot           lotPayload `json:"lot"`
	OccupiedSpots int        `json:"occupied_spots"`
	TotalSpots    int        `json:"total_spots"`
}

func newUserPayload(user accounts.User) userPayload {
	return userPayload{
		ID:             user.ID.Int64(),
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		IsAdmin:        user.IsAdmin,
		CreatedUnixUTC: user.CreatedUnixUTC,
	}
}

func newLotPayload(lot occupancy.Lot) lotPayload {
	return lotPayload{
		ID:                lot.ID.Int64(),
		Name:              lot.Details.Name,
		PricePerHourCents: lot.Details.PricePerHour.Int64(),
		Address:           lot.Details.Address,
		PinCode:           lot.Details.PinCode,
		MaxSpots:          lot.MaxSpots,
		SpotsFilled:       lot.SpotsFilled,
		AvailableSpots:    lot.AvailableSpots(),
	}
}

func newLotPayloads(lots []occupancy.Lot) []lotPayload {
	payloads := make([]lotPayload, 0, len(lots))
	for _, lot := range lots {
		payloads = append(payloads, newLotPayload(lot))
	}
	return payloads
}

func newSpotPayload(spot occupancy.Spot) spotPayload {
	return spotPayload{ID: spot.ID.Int64(), LotID: spot.LotID.Int64(), Status: spot.Status.String()}
}

func newReservationPayload(reservation occupancy.Reservation) reservationPayload {
	return reservationPayload{
		ID:                reservation.ID.Int64(),
		UserID:            reservation.UserID.Int64(),
		SpotID:            reservation.SpotID.Int64(),
		LotID:             reservation.LotID.Int64(),
		PricePerHourCents: reservation.PricePerHour.Int64(),
		StartedUnixUTC:    reservation.StartedUnixUTC,
		EndedUnixUTC:      reservation.EndedUnixUTC,
		Parked:            reservation.Parked,
		Active:            reservation.IsActive(),
		DurationHours:     reservation.DurationHours(),
		TotalCents:        reservation.TotalPrice().Int64(),
		Metadata:          json.RawMessage(reservation.Metadata.String()),
	}
}

func newBookingPayload(booking occupancy.Booking) bookingPayload {
	return bookingPayload{
		ID:                booking.ID.Int64(),
		UserID:            booking.UserID.Int64(),
		LotID:             booking.LotID.Int64(),
		PricePerHourCents: booking.PricePerHour.Int64(),
		StartedUnixUTC:    booking.StartedUnixUTC,
		EndedUnixUTC:      booking.EndedUnixUTC,
		Active:            booking.IsActive(),
		DurationHours:     booking.DurationHours(),
		TotalCents:        booking.TotalPrice().Int64(),
		Metadata:          json.RawMessage(booking.Metadata.String()),
	}
}
