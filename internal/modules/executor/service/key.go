package service

import (
	"fmt"
	"time"

	"forwardtest/internal/helper"
	"forwardtest/internal/models"
)

// IdempotencyKey identifies one signal occurrence across both execution
// contexts: same session, same direction, same cadence slot => same key,
// no matter which scheduler evaluated first.
func IdempotencyKey(sessionID string, dir models.Direction, ts time.Time, cadence time.Duration) string {
	return fmt.Sprintf("%s:%s:%d", sessionID, dir, helper.SlotStart(ts, cadence).Unix())
}
