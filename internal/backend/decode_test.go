package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeList_Shapes(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		shape Shape
		ids   []int64
	}{
		{"array", `[{"id":1},{"id":2}]`, ShapeArray, []int64{1, 2}},
		{"data", `{"success":true,"data":[{"id":3}]}`, ShapeData, []int64{3}},
		{"content", `{"content":[{"id":4}],"totalElements":1}`, ShapeContent, []int64{4}},
		{"keyed", `{"routes":[{"id":5}]}`, ShapeKeyed, []int64{5}},
		{"nested content", `{"data":{"content":[{"id":6},{"id":7}]}}`, ShapeNestedContent, []int64{6, 7}},
		{"unknown", `{"message":"ok"}`, ShapeUnknown, nil},
		{"not json", `<html>`, ShapeUnknown, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, dropped, shape := DecodeList([]byte(tc.raw), routeDTO.valid, "routes")

			assert.Equal(t, tc.shape, shape)
			assert.Zero(t, dropped)

			var ids []int64
			for _, r := range got {
				ids = append(ids, int64(r.ID))
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestDecodeList_DataWinsOverContent(t *testing.T) {
	raw := `{"data":[{"id":1}],"content":[{"id":2}]}`

	got, _, shape := DecodeList([]byte(raw), routeDTO.valid)

	assert.Equal(t, ShapeData, shape)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].ID)
}

func TestDecodeList_DropsMalformedEntries(t *testing.T) {
	raw := `{"success":true,"data":[{"id":1,"source":"Thimphu"},{"id":"abc"},null,{"source":"no id"}]}`

	got, dropped, shape := DecodeList([]byte(raw), routeDTO.valid)

	assert.Equal(t, ShapeData, shape)
	assert.Equal(t, 3, dropped)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "Thimphu", got[0].Source)
	}
}

func TestDecodeObject(t *testing.T) {
	b, ok := DecodeObject[busDTO]([]byte(`{"data":{"id":9,"busNumber":"BP-1"}}`), "bus")
	assert.True(t, ok)
	assert.EqualValues(t, 9, b.ID)

	b, ok = DecodeObject[busDTO]([]byte(`{"bus":{"id":10}}`), "bus")
	assert.True(t, ok)
	assert.EqualValues(t, 10, b.ID)

	b, ok = DecodeObject[busDTO]([]byte(`{"id":11,"number":"X"}`))
	assert.True(t, ok)
	assert.EqualValues(t, 11, b.ID)

	_, ok = DecodeObject[busDTO]([]byte(`[1,2]`))
	assert.False(t, ok)
}

func TestDecodeCount(t *testing.T) {
	cases := []struct {
		raw   string
		n     int
		shape Shape
	}{
		{`12`, 12, ShapeScalar},
		{`"7"`, 7, ShapeScalar},
		{`[{},{},{}]`, 3, ShapeArray},
		{`{"data":[{},{}]}`, 2, ShapeData},
		{`{"hotels":[{}]}`, 1, ShapeKeyed},
		{`{"count":41}`, 41, ShapeCountField},
		{`{"totalElements":"8"}`, 8, ShapeCountField},
		{`{"data":5}`, 5, ShapeCountField},
		{`{"nothing":true}`, 0, ShapeUnknown},
	}

	for _, tc := range cases {
		n, shape := DecodeCount([]byte(tc.raw), "hotels")
		assert.Equal(t, tc.n, n, tc.raw)
		assert.Equal(t, tc.shape, shape, tc.raw)
	}
}

func TestSeatDTO_BookedVariants(t *testing.T) {
	cases := map[string]bool{
		`{"id":1,"booked":true}`:        true,
		`{"id":1,"isBooked":"false"}`:   false,
		`{"id":1,"available":false}`:    true,
		`{"id":1,"status":"AVAILABLE"}`: false,
		`{"id":1,"status":"LOCKED"}`:    true,
		`{"id":1}`:                      false,
	}

	for raw, want := range cases {
		seats, _, _ := DecodeList([]byte("["+raw+"]"), seatDTO.valid)
		if assert.Len(t, seats, 1, raw) {
			assert.Equal(t, want, seats[0].toDomain().Booked, raw)
		}
	}
}

func TestRouteDTO_Defaults(t *testing.T) {
	routes, _, _ := DecodeList([]byte(`[{"id":"3","bus":{"id":2},"baseFare":"150.5","estimatedDuration":90}]`), routeDTO.valid)

	if assert.Len(t, routes, 1) {
		r := routes[0].toDomain()
		assert.Equal(t, int64(2), r.BusID)
		assert.Equal(t, 150.5, r.BaseFare)
		assert.Equal(t, 90, r.EstimatedDuration)
		assert.True(t, r.Active)
	}
}
