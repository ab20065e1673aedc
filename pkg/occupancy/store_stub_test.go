package occupancy

import (
	"context"
	"sort"
	"strings"
	"testing"
)

// stubStore is an in-memory Store with compare-and-swap semantics and
// snapshot rollback inside WithTx.
type stubStore struct {
	nextID       int64
	lots         map[LotID]Lot
	spots        map[SpotID]Spot
	reservations []Reservation
	bookings     []Booking
	failures     map[string]error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		lots:     make(map[LotID]Lot),
		spots:    make(map[SpotID]Spot),
		failures: make(map[string]error),
	}
}

func (store *stubStore) failure(method string) error {
	return store.failures[method]
}

func (store *stubStore) allocateID() int64 {
	store.nextID++
	return store.nextID
}

func (store *stubStore) snapshot() *stubStore {
	copied := &stubStore{
		nextID:       store.nextID,
		lots:         make(map[LotID]Lot, len(store.lots)),
		spots:        make(map[SpotID]Spot, len(store.spots)),
		reservations: append([]Reservation(nil), store.reservations...),
		bookings:     append([]Booking(nil), store.bookings...),
	}
	for id, lot := range store.lots {
		copied.lots[id] = lot
	}
	for id, spot := range store.spots {
		copied.spots[id] = spot
	}
	return copied
}

func (store *stubStore) restore(saved *stubStore) {
	store.nextID = saved.nextID
	store.lots = saved.lots
	store.spots = saved.spots
	store.reservations = saved.reservations
	store.bookings = saved.bookings
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if err := store.failure("WithTx"); err != nil {
		return err
	}
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(saved)
		return err
	}
	return nil
}

func (store *stubStore) CreateLot(ctx context.Context, details LotDetails, maxSpots int) (Lot, error) {
	if err := store.failure("CreateLot"); err != nil {
		return Lot{}, err
	}
	lot := Lot{ID: LotID{value: store.allocateID()}, Details: details, MaxSpots: maxSpots}
	store.lots[lot.ID] = lot
	return lot, nil
}

func (store *stubStore) GetLot(ctx context.Context, lotID LotID) (Lot, error) {
	if err := store.failure("GetLot"); err != nil {
		return Lot{}, err
	}
	lot, ok := store.lots[lotID]
	if !ok {
		return Lot{}, ErrLotNotFound
	}
	return lot, nil
}

func (store *stubStore) UpdateLotDetails(ctx context.Context, lotID LotID, details LotDetails) (Lot, error) {
	lot, ok := store.lots[lotID]
	if !ok {
		return Lot{}, ErrLotNotFound
	}
	lot.Details = details
	store.lots[lotID] = lot
	return lot, nil
}

func (store *stubStore) DeleteLot(ctx context.Context, lotID LotID) error {
	if _, ok := store.lots[lotID]; !ok {
		return ErrLotNotFound
	}
	delete(store.lots, lotID)
	for spotID, spot := range store.spots {
		if spot.LotID == lotID {
			delete(store.spots, spotID)
		}
	}
	keptReservations := store.reservations[:0:0]
	for _, reservation := range store.reservations {
		if reservation.LotID != lotID {
			keptReservations = append(keptReservations, reservation)
		}
	}
	store.reservations = keptReservations
	keptBookings := store.bookings[:0:0]
	for _, booking := range store.bookings {
		if booking.LotID != lotID {
			keptBookings = append(keptBookings, booking)
		}
	}
	store.bookings = keptBookings
	return nil
}

func (store *stubStore) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	if err := store.failure("ListLots"); err != nil {
		return nil, err
	}
	lots := make([]Lot, 0, len(store.lots))
	query := strings.ToLower(filter.Query)
	for _, lot := range store.lots {
		if query != "" && !strings.Contains(strings.ToLower(lot.Details.Name), query) && !strings.Contains(lot.Details.PinCode, filter.Query) {
			continue
		}
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(left, right int) bool { return lots[left].ID.Int64() < lots[right].ID.Int64() })
	return lots, nil
}

func (store *stubStore) IncrementSpotsFilled(ctx context.Context, lotID LotID) error {
	lot, ok := store.lots[lotID]
	if !ok || lot.SpotsFilled >= lot.MaxSpots {
		return ErrLotFull
	}
	lot.SpotsFilled++
	store.lots[lotID] = lot
	return nil
}

func (store *stubStore) DecrementSpotsFilled(ctx context.Context, lotID LotID) error {
	lot, ok := store.lots[lotID]
	if !ok || lot.SpotsFilled <= 0 {
		return nil
	}
	lot.SpotsFilled--
	store.lots[lotID] = lot
	return nil
}

func (store *stubStore) ShrinkCapacity(ctx context.Context, lotID LotID) error {
	lot, ok := store.lots[lotID]
	if !ok || lot.MaxSpots <= 0 || lot.SpotsFilled > lot.MaxSpots-1 {
		return ErrLotOverCapacity
	}
	lot.MaxSpots--
	store.lots[lotID] = lot
	return nil
}

func (store *stubStore) CountActiveClaims(ctx context.Context, lotID LotID) (int64, error) {
	var count int64
	for _, reservation := range store.reservations {
		if reservation.LotID == lotID && reservation.IsActive() {
			count++
		}
	}
	for _, booking := range store.bookings {
		if booking.LotID == lotID && booking.IsActive() {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) CreateSpots(ctx context.Context, lotID LotID, count int) error {
	if err := store.failure("CreateSpots"); err != nil {
		return err
	}
	for index := 0; index < count; index++ {
		spot := Spot{ID: SpotID{value: store.allocateID()}, LotID: lotID, Status: SpotStatusAvailable}
		store.spots[spot.ID] = spot
	}
	return nil
}

func (store *stubStore) GetSpot(ctx context.Context, spotID SpotID) (Spot, error) {
	if err := store.failure("GetSpot"); err != nil {
		return Spot{}, err
	}
	spot, ok := store.spots[spotID]
	if !ok {
		return Spot{}, ErrSpotNotFound
	}
	return spot, nil
}

func (store *stubStore) ListSpots(ctx context.Context, lotID LotID) ([]Spot, error) {
	spots := make([]Spot, 0)
	for _, spot := range store.spots {
		if spot.LotID == lotID {
			spots = append(spots, spot)
		}
	}
	sort.Slice(spots, func(left, right int) bool { return spots[left].ID.Int64() < spots[right].ID.Int64() })
	return spots, nil
}

func (store *stubStore) UpdateSpotStatus(ctx context.Context, spotID SpotID, from, to SpotStatus) error {
	spot, ok := store.spots[spotID]
	if !ok || spot.Status != from {
		return ErrSpotStateChanged
	}
	spot.Status = to
	store.spots[spotID] = spot
	return nil
}

func (store *stubStore) DeleteSpot(ctx context.Context, spotID SpotID) error {
	if _, ok := store.spots[spotID]; !ok {
		return ErrSpotNotFound
	}
	delete(store.spots, spotID)
	kept := store.reservations[:0:0]
	for _, reservation := range store.reservations {
		if reservation.SpotID != spotID {
			kept = append(kept, reservation)
		}
	}
	store.reservations = kept
	return nil
}

func (store *stubStore) CreateReservation(ctx context.Context, input ReservationInput) (Reservation, error) {
	if err := store.failure("CreateReservation"); err != nil {
		return Reservation{}, err
	}
	reservation := Reservation{
		ID:             ReservationID{value: store.allocateID()},
		UserID:         input.UserID,
		SpotID:         input.SpotID,
		LotID:          input.LotID,
		PricePerHour:   input.PricePerHour,
		StartedUnixUTC: input.StartedUnixUTC,
		Metadata:       input.Metadata,
	}
	store.reservations = append(store.reservations, reservation)
	return reservation, nil
}

func (store *stubStore) GetActiveReservationForUser(ctx context.Context, userID UserID) (Reservation, error) {
	if err := store.failure("GetActiveReservationForUser"); err != nil {
		return Reservation{}, err
	}
	for _, reservation := range store.reservations {
		if reservation.UserID == userID && reservation.IsActive() {
			return reservation, nil
		}
	}
	return Reservation{}, ErrReservationNotFound
}

func (store *stubStore) GetActiveReservation(ctx context.Context, userID UserID, spotID SpotID) (Reservation, error) {
	for _, reservation := range store.reservations {
		if reservation.UserID == userID && reservation.SpotID == spotID && reservation.IsActive() {
			return reservation, nil
		}
	}
	return Reservation{}, ErrReservationNotFound
}

func (store *stubStore) MarkReservationParked(ctx context.Context, reservationID ReservationID) (bool, error) {
	for index, reservation := range store.reservations {
		if reservation.ID == reservationID && reservation.IsActive() {
			if reservation.Parked {
				return false, nil
			}
			store.reservations[index].Parked = true
			return true, nil
		}
	}
	return false, ErrReservationNotFound
}

func (store *stubStore) EndReservation(ctx context.Context, reservationID ReservationID, endedUnixUTC int64) (Reservation, error) {
	for index, reservation := range store.reservations {
		if reservation.ID != reservationID {
			continue
		}
		if !reservation.IsActive() {
			return Reservation{}, ErrReservationClosed
		}
		reservation.EndedUnixUTC = endedUnixUTC
		reservation.Parked = false
		store.reservations[index] = reservation
		return reservation, nil
	}
	return Reservation{}, ErrReservationNotFound
}

func (store *stubStore) ListReservations(ctx context.Context, userID UserID) ([]Reservation, error) {
	if err := store.failure("ListReservations"); err != nil {
		return nil, err
	}
	reservations := make([]Reservation, 0)
	for index := len(store.reservations) - 1; index >= 0; index-- {
		if store.reservations[index].UserID == userID {
			reservations = append(reservations, store.reservations[index])
		}
	}
	return reservations, nil
}

func (store *stubStore) CreateBooking(ctx context.Context, input BookingInput) (Booking, error) {
	booking := Booking{
		ID:             BookingID{value: store.allocateID()},
		UserID:         input.UserID,
		LotID:          input.LotID,
		PricePerHour:   input.PricePerHour,
		StartedUnixUTC: input.StartedUnixUTC,
		Metadata:       input.Metadata,
	}
	store.bookings = append(store.bookings, booking)
	return booking, nil
}

func (store *stubStore) GetActiveBookingForUser(ctx context.Context, userID UserID) (Booking, error) {
	for _, booking := range store.bookings {
		if booking.UserID == userID && booking.IsActive() {
			return booking, nil
		}
	}
	return Booking{}, ErrBookingNotFound
}

func (store *stubStore) EndBooking(ctx context.Context, bookingID BookingID, endedUnixUTC int64) (Booking, error) {
	for index, booking := range store.bookings {
		if booking.ID != bookingID {
			continue
		}
		if !booking.IsActive() {
			return Booking{}, ErrBookingClosed
		}
		booking.EndedUnixUTC = endedUnixUTC
		store.bookings[index] = booking
		return booking, nil
	}
	return Booking{}, ErrBookingNotFound
}

func (store *stubStore) ListBookings(ctx context.Context, userID UserID) ([]Booking, error) {
	bookings := make([]Booking, 0)
	for index := len(store.bookings) - 1; index >= 0; index-- {
		if store.bookings[index].UserID == userID {
			bookings = append(bookings, store.bookings[index])
		}
	}
	return bookings, nil
}

// assertCounterInvariants checks that counters agree with the active claims.
func (store *stubStore) assertCounterInvariants(test *testing.T) {
	test.Helper()
	for spotID, spot := range store.spots {
		active := 0
		for _, reservation := range store.reservations {
			if reservation.SpotID == spotID && reservation.IsActive() {
				active++
			}
		}
		if active > 1 {
			test.Fatalf("spot %d has %d active reservations", spotID.Int64(), active)
		}
		if (spot.Status == SpotStatusOccupied) != (active == 1) {
			test.Fatalf("spot %d status %s disagrees with %d active reservations", spotID.Int64(), spot.Status, active)
		}
	}
	for lotID, lot := range store.lots {
		if lot.SpotsFilled < 0 || lot.SpotsFilled > lot.MaxSpots {
			test.Fatalf("lot %d spots_filled %d outside [0, %d]", lotID.Int64(), lot.SpotsFilled, lot.MaxSpots)
		}
	}
	claimsByUser := make(map[UserID]int)
	for _, reservation := range store.reservations {
		if reservation.IsActive() {
			claimsByUser[reservation.UserID]++
		}
	}
	for _, booking := range store.bookings {
		if booking.IsActive() {
			claimsByUser[booking.UserID]++
		}
	}
	for userID, claims := range claimsByUser {
		if claims > 1 {
			test.Fatalf("user %d holds %d active claims", userID.Int64(), claims)
		}
	}
}

type testClock struct {
	nowUnixUTC int64
}

func (clock *testClock) Now() int64 {
	return clock.nowUnixUTC
}

func (clock *testClock) Advance(seconds int64) {
	clock.nowUnixUTC += seconds
}

func mustNewService(test *testing.T, store Store, clock *testClock, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, clock.Now, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw int64) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	value, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return value
}

func mustLotDetails(test *testing.T, name string, pricePerHourCents int64) LotDetails {
	test.Helper()
	details, err := NewLotDetails(name, pricePerHourCents, "1 Main Street", "560001")
	if err != nil {
		test.Fatalf("lot details: %v", err)
	}
	return details
}

func adminPrincipal(test *testing.T) Principal {
	test.Helper()
	return Principal{UserID: mustUserID(test, 1), Username: "admin", IsAdmin: true}
}

// mustCreateLot creates a lot through the service and returns it with its spots.
func mustCreateLot(test *testing.T, service *Service, store *stubStore, name string, pricePerHourCents int64, maxSpots int) (Lot, []Spot) {
	test.Helper()
	lot, err := service.CreateLot(context.Background(), adminPrincipal(test), mustLotDetails(test, name, pricePerHourCents), maxSpots)
	if err != nil {
		test.Fatalf("create lot: %v", err)
	}
	spots, err := store.ListSpots(context.Background(), lot.ID)
	if err != nil {
		test.Fatalf("list spots: %v", err)
	}
	return lot, spots
}

func (store *stubStore) mustLot(test *testing.T, lotID LotID) Lot {
	test.Helper()
	lot, ok := store.lots[lotID]
	if !ok {
		test.Fatalf("lot %d not found", lotID.Int64())
	}
	return lot
}

func (store *stubStore) mustSpot(test *testing.T, spotID SpotID) Spot {
	test.Helper()
	spot, ok := store.spots[spotID]
	if !ok {
		test.Fatalf("spot %d not found", spotID.Int64())
	}
	return spot
}
