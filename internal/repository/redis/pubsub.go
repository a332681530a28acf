package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScheduleChange says that schedules of some routes of a bus changed in a
// console session.
type ScheduleChange struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	BusID     int64   `json:"bus_id"`
	RouteIDs  []int64 `json:"route_ids"`
	TsUnix    int64   `json:"ts_unix"`
}

type ChangesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewChangesPubSub(rdb *redis.Client) *ChangesPubSub {
	return &ChangesPubSub{
		rdb:     rdb,
		channel: ChannelSchedulesChanged(),
	}
}

func (p *ChangesPubSub) PublishSchedulesChanged(ctx context.Context, sessionID string, busID int64, routeIDs []int64) error {
	msg := ScheduleChange{
		Type:      "schedules_changed",
		SessionID: sessionID,
		BusID:     busID,
		RouteIDs:  routeIDs,
		TsUnix:    time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe delivers changes until ctx is done.
func (p *ChangesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ch ScheduleChange)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var change ScheduleChange
			if err := json.Unmarshal([]byte(m.Payload), &change); err == nil &&
				change.BusID != 0 && len(change.RouteIDs) > 0 {
				handler(ctx, change)
			}
		}
	}
}
