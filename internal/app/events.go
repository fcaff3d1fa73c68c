package app

import (
	"go.uber.org/dig"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/events"
	"parcel-dispatch/internal/notify"
	"parcel-dispatch/internal/realtime"
	"parcel-dispatch/internal/service/chat"
	"parcel-dispatch/internal/service/dispatch"
	"parcel-dispatch/internal/service/settlement"
	"parcel-dispatch/internal/transport/kafka"
)

type subscribersIn struct {
	dig.In

	Bus        *events.Bus
	Dispatch   *dispatch.Service
	Settlement *settlement.Service
	Chat       *chat.Service
	Relay      *realtime.Relay
	Notifier   *notify.StatusNotifier
	Producer   *kafka.Producer `optional:"true"`
}

// subscribeEvents connects the post-commit reactions. Both processes run the
// same set so a transition made in either one has identical effects.
func subscribeEvents(in subscribersIn) {
	in.Bus.Subscribe("dispatch", in.Dispatch.OnEvent, domain.EventStatusChanged)
	in.Bus.Subscribe("settlement", in.Settlement.OnEvent, domain.EventDelivered)
	in.Bus.Subscribe("chat_timeline", in.Chat.OnEvent, domain.EventStatusChanged, domain.EventRiderUnassigned)
	in.Bus.Subscribe("realtime", in.Relay.OnEvent, domain.EventStatusChanged, domain.EventRiderUnassigned)
	in.Bus.Subscribe("notify", in.Notifier.OnEvent, domain.EventStatusChanged)
	if in.Producer != nil {
		in.Bus.Subscribe("kafka", in.Producer.OnEvent)
	}
}
