package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// Audit actions for room lifecycle transitions.
const (
	ActionCreateRoom      = "room.create"
	ActionStartRoom       = "room.start"
	ActionStopRoom        = "room.stop"
	ActionEndByDisconnect = "room.end_by_disconnect"
	ActionReclaimRoom     = "room.reclaim"
	ActionShareProduct    = "room.share_product"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, roomID string, msg string) {
	l := log.Ctx(log.WithRoom(ctx, roomID, ""))
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, roomID, detail, msg string) {
	l := log.Ctx(log.WithRoom(ctx, roomID, ""))
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
