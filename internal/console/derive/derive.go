// Package derive keeps the dependent fields of the schedule form in sync with
// the fields they are computed from.
package derive

import (
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/busdesk/internal/domain"
)

// FormLayout is the datetime-local layout used by form inputs.
const FormLayout = "2006-01-02T15:04"

type ScheduleForm struct {
	RouteID   int64  `json:"route_id"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	Price     string `json:"price"`
}

// Resolver derives arrival from departure plus the selected route's
// duration, and price from the selected route's base fare.
//
// Arrival is fully derived while a route is selected. Price is derived only
// when the selection changes, so manual edits survive until then.
type Resolver struct {
	loc   *time.Location
	route *domain.Route
}

func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{loc: loc}
}

// SelectRoute changes the selected route. A nil route clears the selection
// and leaves every field as it is.
func (r *Resolver) SelectRoute(f *ScheduleForm, route *domain.Route) {
	if route == nil {
		r.route = nil
		f.RouteID = 0
		return
	}

	changed := r.route == nil || r.route.ID != route.ID

	rt := *route
	r.route = &rt
	f.RouteID = rt.ID

	if !changed {
		return
	}

	f.Price = FormatAmount(rt.BaseFare)
	r.deriveArrival(f)
}

// Prime selects route without deriving anything, for forms populated from
// an existing schedule.
func (r *Resolver) Prime(route *domain.Route) {
	if route == nil {
		r.route = nil
		return
	}
	rt := *route
	r.route = &rt
}

func (r *Resolver) SetDeparture(f *ScheduleForm, v string) {
	f.Departure = v
	r.deriveArrival(f)
}

func (r *Resolver) SetArrival(f *ScheduleForm, v string) {
	f.Arrival = v
}

func (r *Resolver) SetPrice(f *ScheduleForm, v string) {
	f.Price = v
}

func (r *Resolver) Selected() *domain.Route {
	return r.route
}

func (r *Resolver) Reset() {
	r.route = nil
}

func (r *Resolver) deriveArrival(f *ScheduleForm) {
	if r.route == nil {
		return
	}

	if arr, ok := ArrivalFor(f.Departure, r.route.EstimatedDuration, r.loc); ok {
		f.Arrival = arr
	}
}

// ArrivalFor adds minutes to a form departure value.
func ArrivalFor(departure string, minutes int, loc *time.Location) (string, bool) {
	dep, ok := ParseFormTime(departure, loc)
	if !ok {
		return "", false
	}
	return dep.Add(time.Duration(minutes) * time.Minute).Format(FormLayout), true
}

// ParseFormTime accepts datetime-local values with or without seconds.
func ParseFormTime(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{FormLayout, "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
