package runtime

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/observability"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFanout_Deliver_CountsAcceptedSinks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	fanout := NewFanout(log, monitoring, time.Second)

	ok := newSink(ctrl, "c1", "alice")
	slow := newSink(ctrl, "c2", "bob")
	ok.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrSlowConsumer).Times(1)

	// When an event is fanned out to a healthy and a saturated sink
	delivered := fanout.Deliver(context.Background(), []contract.EventSink{ok, slow}, event.New(event.UserOnlineType, nil))

	// Then only the healthy one counts
	req.Equal(1, delivered)
	req.Equal(uint64(1), monitoring.EventsDelivered)
	req.Equal(uint64(1), monitoring.SlowConsumers)
}

func TestFanout_DeliverExcept(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	fanout := NewFanout(log, observability.NewMonitoringManager(log), time.Second)

	sender := newSink(ctrl, "c1", "alice")
	peer := newSink(ctrl, "c2", "bob")
	sender.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)
	peer.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	delivered := fanout.DeliverExcept(context.Background(), []contract.EventSink{sender, peer},
		func(s contract.EventSink) bool { return s.UserID() == "alice" },
		event.New(event.ReceiveMessageType, nil))
	req.Equal(1, delivered)
}
