package sellrequests

import (
	"time"

	"github.com/angelmondragon/devicetrade-backend/pkg/db/models"
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/statemachine"
)

// Machine is the device intake lifecycle. Cancellation stops once the device ships.
var Machine = statemachine.New(statemachine.Definition[enums.SellRequestStatus]{
	Name: "sell_request",
	Transitions: map[enums.SellRequestStatus][]enums.SellRequestStatus{
		enums.SellRequestStatusPending:    {enums.SellRequestStatusQuoted, enums.SellRequestStatusCancelled},
		enums.SellRequestStatusQuoted:     {enums.SellRequestStatusAccepted, enums.SellRequestStatusCancelled},
		enums.SellRequestStatusAccepted:   {enums.SellRequestStatusShipping, enums.SellRequestStatusCancelled},
		enums.SellRequestStatusShipping:   {enums.SellRequestStatusInspecting},
		enums.SellRequestStatusInspecting: {enums.SellRequestStatusCompleted},
	},
	Terminal: []enums.SellRequestStatus{
		enums.SellRequestStatusCompleted,
		enums.SellRequestStatusCancelled,
	},
})

var sellRequestTimestamps = map[enums.SellRequestStatus]struct {
	column string
	field  func(*models.SellRequest) **time.Time
}{
	enums.SellRequestStatusQuoted:     {"quoted_at", func(s *models.SellRequest) **time.Time { return &s.QuotedAt }},
	enums.SellRequestStatusAccepted:   {"accepted_at", func(s *models.SellRequest) **time.Time { return &s.AcceptedAt }},
	enums.SellRequestStatusShipping:   {"shipped_at", func(s *models.SellRequest) **time.Time { return &s.ShippedAt }},
	enums.SellRequestStatusInspecting: {"inspecting_at", func(s *models.SellRequest) **time.Time { return &s.InspectingAt }},
	enums.SellRequestStatusCompleted:  {"completed_at", func(s *models.SellRequest) **time.Time { return &s.CompletedAt }},
	enums.SellRequestStatusCancelled:  {"cancelled_at", func(s *models.SellRequest) **time.Time { return &s.CancelledAt }},
}

// ApplyTransition validates the move, stamps the matching *_at field and
// returns the column updates for a conditional status write.
func ApplyTransition(sr *models.SellRequest, to enums.SellRequestStatus, at time.Time) (map[string]any, error) {
	hooks := statemachine.Hooks[enums.SellRequestStatus]{}
	ts, stamped := sellRequestTimestamps[to]
	if stamped {
		hooks.On(to, statemachine.SetTime(ts.field(sr)))
	}
	if err := Machine.Apply(sr.Status, to, at, hooks); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": at.UTC(),
	}
	if stamped {
		updates[ts.column] = *ts.field(sr)
	}
	sr.Status = to
	return updates, nil
}
