package wire_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/wire"
)

const looseRecord = `{
	"id": 17,
	"destino_id": "cusco",
	"destino": "Cusco",
	"tour": "Tour clásico Machu Picchu",
	"precio": "580.50",
	"estado": "confirmado",
	"fecha_inicio": "2030-01-01",
	"fecha_fin": null,
	"resena_completada": "false",
	"gastos": {"transporte": 200, "alojamiento": "180", "propinas": null, "descuento": -20, "entradas": "n/a"},
	"duracion": "4 días / 3 noches"
}`

func TestPlanRecord_LooseDecoding(t *testing.T) {
	// GIVEN: A record with every loose form the service produces
	var rec wire.PlanRecord
	require.NoError(t, json.Unmarshal([]byte(looseRecord), &rec))

	// WHEN: Converted to a plan
	p, notes, err := rec.ToPlan()
	require.NoError(t, err)

	// THEN: Types are coerced, expenses keep key order and bad amounts are dropped
	assert.Equal(t, plan.ID("17"), p.ID)
	assert.Equal(t, "580.5", p.Price.String())
	assert.Equal(t, plan.StateConfirmed, p.State)
	require.Len(t, p.Expenses, 2)
	assert.Equal(t, "transporte", p.Expenses[0].Category)
	assert.Equal(t, "alojamiento", p.Expenses[1].Category)

	// Missing duration_dias comes from the label; missing end date is derived.
	assert.Equal(t, 4, p.DurationDays)
	require.NotNil(t, p.EndDate)
	assert.Equal(t, "05/01/2030", p.EndDate.String())
	assert.NotEmpty(t, notes)
}

func TestPlanRecord_Rejections(t *testing.T) {
	var rec wire.PlanRecord
	require.NoError(t, json.Unmarshal([]byte(`{"destino_id":"cusco","estado":"borrador"}`), &rec))
	_, _, err := rec.ToPlan()
	assert.ErrorIs(t, err, plan.ErrMissingID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","estado":"archivado"}`), &rec))
	_, _, err = rec.ToPlan()
	assert.ErrorIs(t, err, wire.ErrUnknownState)
	assert.ErrorIs(t, err, plan.ErrInvalidState)
}

func TestFromPlan_RoundTrip(t *testing.T) {
	start := calendar.New(2030, time.March, 1)
	p := plan.Plan{
		ID:            "abc",
		DestinationID: "puno",
		TourName:      "Lago Titicaca",
		Price:         decimal.NewFromInt(400),
		DurationDays:  3,
		Expenses: plan.Expenses{
			{Category: "transporte", Amount: decimal.NewFromInt(90)},
			{Category: "alojamiento", Amount: decimal.NewFromInt(150)},
		},
		State:     plan.StatePending,
		StartDate: &start,
		EndDate:   calendar.Ptr(start.AddDays(3)),
	}

	data, err := json.Marshal(wire.FromPlan(p))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gastos":{"transporte":90,"alojamiento":150}`)
	assert.Contains(t, string(data), `"estado":"pendiente"`)
	assert.Contains(t, string(data), `"fecha_inicio":"01/03/2030"`)
	assert.Contains(t, string(data), `"precio":400`)

	var rec wire.PlanRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	back, _, err := rec.ToPlan()
	require.NoError(t, err)
	require.Len(t, back.Expenses, 2)
	assert.Equal(t, "transporte", back.Expenses[0].Category)
	assert.True(t, back.Expenses[1].Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, back.EndDate.Equal(*p.EndDate))
}

func TestCreateRecord(t *testing.T) {
	d := plan.Draft{DestinationID: "paracas", DestinationName: "Paracas", TourName: "Islas Ballestas", Price: decimal.NewFromInt(380)}
	data, err := json.Marshal(wire.CreateRecord(d))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "borrador", body["estado"])
	assert.NotContains(t, body, "id")
	assert.Nil(t, body["fecha_inicio"])
	assert.EqualValues(t, 1, body["duracion_dias"])
}

func TestDecodeList_Shapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":  `[{"id":"1","estado":"borrador"},{"id":2,"estado":"pendiente"}]`,
		"planes": `{"planes":[{"id":"1","estado":"borrador"},{"id":2,"estado":"pendiente"}]}`,
		"data":   `{"data":[{"id":"1","estado":"borrador"},{"id":2,"estado":"pendiente"}]}`,
	} {
		recs, err := wire.DecodeList([]byte(body))
		require.NoError(t, err, name)
		assert.Len(t, recs, 2, name)
	}

	_, err := wire.DecodeList([]byte(`{"ok":true}`))
	assert.ErrorIs(t, err, wire.ErrUnexpectedShape)
	_, err = wire.DecodeList([]byte(`"nope"`))
	assert.ErrorIs(t, err, wire.ErrUnexpectedShape)
}

func TestDecodeList_BadRecordDoesNotFailList(t *testing.T) {
	// GIVEN a list where single fields or whole records are malformed
	body := `[
		{"id":1,"estado":"borrador"},
		{"id":2,"estado":"borrador","resena_completada":"yes"},
		{"id":3,"estado":"borrador","gastos":[1,2]},
		{"id":4,"estado":"borrador","destino_id":{"x":1}}
	]`

	// WHEN decoded
	recs, err := wire.DecodeList([]byte(body))

	// THEN the list survives; loose fields default and the broken record is rejected by ToPlan
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.False(t, bool(recs[1].ReviewSubmitted))
	assert.Empty(t, recs[2].Expenses)

	for _, rec := range recs[:3] {
		_, _, err := rec.ToPlan()
		assert.NoError(t, err, string(rec.ID))
	}
	assert.Equal(t, wire.ID("4"), recs[3].ID)
	_, _, err = recs[3].ToPlan()
	assert.Error(t, err)
}

func TestDecodeOne(t *testing.T) {
	for _, body := range []string{`{"id":"9","estado":"borrador"}`, `{"plan":{"id":"9","estado":"borrador"}}`, `{"data":{"id":"9","estado":"borrador"}}`} {
		rec, err := wire.DecodeOne([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, wire.ID("9"), rec.ID)
	}
}

func TestPatch_RoundTrip(t *testing.T) {
	cancelled := plan.StateCancelled
	data, err := json.Marshal(wire.Patch(plan.Changes{State: &cancelled, ClearDates: true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"estado":"cancelado","fecha_inicio":null,"fecha_fin":null}`, string(data))

	c, err := wire.DecodePatch(data)
	require.NoError(t, err)
	assert.True(t, c.ClearDates)
	assert.Equal(t, plan.StateCancelled, *c.State)

	start := calendar.New(2030, time.May, 2)
	data, err = json.Marshal(wire.Patch(plan.Changes{
		StartDate:       &start,
		EndDate:         calendar.Ptr(start.AddDays(2)),
		ReviewSubmitted: plan.BoolPtr(true),
		Review:          &plan.Review{Stars: 5, Comment: "Increíble"},
	}))
	require.NoError(t, err)

	c, err = wire.DecodePatch(data)
	require.NoError(t, err)
	assert.Nil(t, c.State)
	assert.Equal(t, "04/05/2030", c.EndDate.String())
	assert.True(t, *c.ReviewSubmitted)
	assert.Equal(t, 5, c.Review.Stars)
}

func TestDecodePatch_RejectsBadFields(t *testing.T) {
	_, err := wire.DecodePatch([]byte(`{"estado":"perdido"}`))
	assert.ErrorIs(t, err, plan.ErrInvalidState)

	_, err = wire.DecodePatch([]byte(`{"fecha_inicio":"31/02/2030"}`))
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)

	_, err = wire.DecodePatch([]byte(`[]`))
	assert.Error(t, err)
}

func TestErrorBody_Text(t *testing.T) {
	assert.Equal(t, "bad", wire.ErrorBody{Error: "bad", Message: "other"}.Text())
	assert.Equal(t, "other", wire.ErrorBody{Message: "other"}.Text())
}
