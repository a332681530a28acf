package redis

import "fmt"

const ns = "busdesk:v1"

func KeyBus(busID int64) string {
	return fmt.Sprintf("%s:bus:%d", ns, busID)
}

func KeyIdemBooking(sessionID, idemKey string) string {
	return fmt.Sprintf("%s:idem:booking:%s:%s", ns, sessionID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelSchedulesChanged() string {
	return ns + ":schedules:changed"
}
