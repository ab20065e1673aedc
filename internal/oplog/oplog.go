// Package oplog renders occupancy operation records as structured zap logs.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"go.uber.org/zap"
)

const operationMessage = "operation"

// Logger implements occupancy.OperationLogger on top of zap.
type Logger struct {
	logger *zap.Logger
}

// New wraps a zap logger. A nil logger discards every record.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// LogOperation writes one record. Failures log at warn level, everything else at info.
func (logger *Logger) LogOperation(ctx context.Context, entry occupancy.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	fields = appendID(fields, "user_id", entry.UserID.Int64())
	fields = appendID(fields, "lot_id", entry.LotID.Int64())
	fields = appendID(fields, "spot_id", entry.SpotID.Int64())
	fields = appendID(fields, "reservation_id", entry.ReservationID.Int64())
	fields = appendID(fields, "booking_id", entry.BookingID.Int64())
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		if kind := occupancy.ErrorKind(entry.Error); kind != nil {
			fields = append(fields, zap.String("error_kind", kind.Error()))
		}
		logger.logger.Warn(operationMessage, fields...)
		return
	}
	logger.logger.Info(operationMessage, fields...)
}

func appendID(fields []zap.Field, key string, value int64) []zap.Field {
	if value == 0 {
		return fields
	}
	return append(fields, zap.Int64(key, value))
}
