package occupancy

const (
	operationBookLot        = "book_lot"
	operationReleaseLot     = "release_lot"
	operationReserveSpot    = "reserve_spot"
	operationConfirmParking = "confirm_parking"
	operationReleaseSpot    = "release_spot"
	operationCreateLot      = "create_lot"
	operationUpdateLot      = "update_lot"
	operationDeleteLot      = "delete_lot"
	operationDeleteSpot     = "delete_spot"

	operationStatusOK               = "ok"
	operationStatusError            = "error"
	operationStatusAlreadyConfirmed = "already_confirmed"
)
