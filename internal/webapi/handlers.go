package webapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return
	}
	user, err := handler.accounts.Register(ctx.Request.Context(), request.Username, request.DisplayName, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"user": newUserPayload(user)})
}

func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return
	}
	result, err := handler.accounts.Login(ctx.Request.Context(), request.Username, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, result.Token, int(handler.cfg.SessionTTL.Seconds()), "/", "", handler.cfg.SecureCookies, true)
	ctx.JSON(http.StatusOK, gin.H{
		"token":            result.Token,
		"expires_unix_utc": result.Session.ExpiresUnixUTC,
		"user":             newUserPayload(result.User),
	})
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	principal := principalFrom(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":      principal.UserID.Int64(),
		"username":     principal.Username,
		"display_name": principal.DisplayName,
		"is_admin":     principal.IsAdmin,
	})
}

func (handler *httpHandler) handleLogout(ctx *gin.Context) {
	if err := handler.accounts.Logout(ctx.Request.Context(), getClaims(ctx)); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, "", -1, "/", "", handler.cfg.SecureCookies, true)
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleListLots(ctx *gin.Context) {
	lots, err := handler.occupancy.ListLots(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lots": newLotPayloads(lots)})
}

func (handler *httpHandler) handleGetLot(ctx *gin.Context) {
	lotID, ok := handler.lotIDParam(ctx)
	if !ok {
		return
	}
	lot, err := handler.occupancy.GetLot(ctx.Request.Context(), lotID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lot": newLotPayload(lot)})
}

func (handler *httpHandler) handleListSpots(ctx *gin.Context) {
	lotID, ok := handler.lotIDParam(ctx)
	if !ok {
		return
	}
	spots, err := handler.occupancy.ListSpots(ctx.Request.Context(), lotID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]spotPayload, 0, len(spots))
	for _, spot := range spots {
		payloads = append(payloads, newSpotPayload(spot))
	}
	ctx.JSON(http.StatusOK, gin.H{"spots": payloads})
}

func (handler *httpHandler) handleBookLot(ctx *gin.Context) {
	lotID, ok := handler.lotIDParam(ctx)
	if !ok {
		return
	}
	metadata, ok := handler.bindMetadata(ctx)
	if !ok {
		return
	}
	booking, err := handler.occupancy.BookLot(ctx.Request.Context(), principalFrom(ctx).UserID, lotID, metadata)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking": newBookingPayload(booking)})
}

func (handler *httpHandler) handleReleaseLot(ctx *gin.Context) {
	booking, err := handler.occupancy.ReleaseLot(ctx.Request.Context(), principalFrom(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingPayload(booking)})
}

func (handler *httpHandler) handleReserveSpot(ctx *gin.Context) {
	spotID, ok := handler.spotIDParam(ctx)
	if !ok {
		return
	}
	metadata, ok := handler.bindMetadata(ctx)
	if !ok {
		return
	}
	reservation, err := handler.occupancy.ReserveSpot(ctx.Request.Context(), principalFrom(ctx).UserID, spotID, metadata)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *httpHandler) handleConfirmParking(ctx *gin.Context) {
	spotID, ok := handler.spotIDParam(ctx)
	if !ok {
		return
	}
	confirmation, err := handler.occupancy.ConfirmParking(ctx.Request.Context(), principalFrom(ctx).UserID, spotID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"reservation":       newReservationPayload(confirmation.Reservation),
		"already_confirmed": confirmation.AlreadyConfirmed,
	})
}

func (handler *httpHandler) handleReleaseSpot(ctx *gin.Context) {
	spotID, ok := handler.spotIDParam(ctx)
	if !ok {
		return
	}
	reservation, err := handler.occupancy.ReleaseSpot(ctx.Request.Context(), principalFrom(ctx).UserID, spotID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *httpHandler) handleHistory(ctx *gin.Context) {
	history, err := handler.occupancy.History(ctx.Request.Context(), principalFrom(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	reservations := make([]reservationPayload, 0, len(history.Reservations))
	for _, reservation := range history.Reservations {
		reservations = append(reservations, newReservationPayload(reservation))
	}
	bookings := make([]bookingPayload, 0, len(history.Bookings))
	for _, booking := range history.Bookings {
		bookings = append(bookings, newBookingPayload(booking))
	}
	ctx.JSON(http.StatusOK, gin.H{"reservations": reservations, "bookings": bookings})
}

func (handler *httpHandler) handleCreateLot(ctx *gin.Context) {
	var request lotRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return
	}
	details, err := occupancy.NewLotDetails(request.Name, request.PricePerHourCents, request.Address, request.PinCode)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	lot, err := handler.occupancy.CreateLot(ctx.Request.Context(), principalFrom(ctx), details, request.MaxSpots)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"lot": newLotPayload(lot)})
}

func (handler *httpHandler) handleUpdateLot(ctx *gin.Context) {
	lotID, ok := handler.lotIDParam(ctx)
	if !ok {
		return
	}
	var request lotRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return
	}
	details, err := occupancy.NewLotDetails(request.Name, request.PricePerHourCents, request.Address, request.PinCode)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	lot, err := handler.occupancy.UpdateLot(ctx.Request.Context(), principalFrom(ctx), lotID, details)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lot": newLotPayload(lot)})
}

func (handler *httpHandler) handleDeleteLot(ctx *gin.Context) {
	lotID, ok := handler.lotIDParam(ctx)
	if !ok {
		return
	}
	if err := handler.occupancy.DeleteLot(ctx.Request.Context(), principalFrom(ctx), lotID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleSearchLots(ctx *gin.Context) {
	lots, err := handler.occupancy.SearchLots(ctx.Request.Context(), principalFrom(ctx), ctx.Query("q"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lots": newLotPayloads(lots)})
}

func (handler *httpHandler) handleDeleteSpot(ctx *gin.Context) {
	spotID, ok := handler.spotIDParam(ctx)
	if !ok {
		return
	}
	if err := handler.occupancy.DeleteSpot(ctx.Request.Context(), principalFrom(ctx), spotID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleSummary(ctx *gin.Context) {
	summary, err := handler.occupancy.OccupancySummary(ctx.Request.Context(), principalFrom(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]occupancyPayload, 0, len(summary))
	for _, entry := range summary {
		payloads = append(payloads, occupancyPayload{
			Lot:           newLotPayload(entry.Lot),
			OccupiedSpots: entry.OccupiedSpots,
			TotalSpots:    entry.TotalSpots,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"lots": payloads})
}

func (handler *httpHandler) handleListUsers(ctx *gin.Context) {
	users, err := handler.accounts.ListUsers(ctx.Request.Context(), principalFrom(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]userPayload, 0, len(users))
	for _, user := range users {
		payloads = append(payloads, newUserPayload(user))
	}
	ctx.JSON(http.StatusOK, gin.H{"users": payloads})
}

func (handler *httpHandler) handlePromoteUser(ctx *gin.Context) {
	rawID, err := strconv.ParseInt(ctx.Param("user_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidInput, "invalid user id"))
		return
	}
	userID, err := occupancy.NewUserID(rawID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	result, err := handler.accounts.PromoteUser(ctx.Request.Context(), principalFrom(ctx), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": newUserPayload(result.User), "already_admin": result.AlreadyAdmin})
}

func (handler *httpHandler) handleCreateAdmin(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return
	}
	user, err := handler.accounts.CreateAdmin(ctx.Request.Context(), principalFrom(ctx), request.Username, request.DisplayName, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"user": newUserPayload(user)})
}

// bindMetadata reads the optional claim body. An empty body means "{}".
func (handler *httpHandler) bindMetadata(ctx *gin.Context) (occupancy.MetadataJSON, bool) {
	var request claimRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "invalid json payload"))
		return occupancy.MetadataJSON{}, false
	}
	metadata, err := occupancy.NewMetadataJSON(string(request.Metadata))
	if err != nil {
		handler.respondError(ctx, err)
		return occupancy.MetadataJSON{}, false
	}
	return metadata, true
}

func (handler *httpHandler) lotIDParam(ctx *gin.Context) (occupancy.LotID, bool) {
	rawID, err := strconv.ParseInt(ctx.Param("lot_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidInput, "invalid lot id"))
		return occupancy.LotID{}, false
	}
	lotID, err := occupancy.NewLotID(rawID)
	if err != nil {
		handler.respondError(ctx, err)
		return occupancy.LotID{}, false
	}
	return lotID, true
}

func (handler *httpHandler) spotIDParam(ctx *gin.Context) (occupancy.SpotID, bool) {
	rawID, err := strconv.ParseInt(ctx.Param("spot_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidInput, "invalid spot id"))
		return occupancy.SpotID{}, false
	}
	spotID, err := occupancy.NewSpotID(rawID)
	if err != nil {
		handler.respondError(ctx, err)
		return occupancy.SpotID{}, false
	}
	return spotID, true
}
