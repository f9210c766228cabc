package wire

import (
	"encoding/json"
	"fmt"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
)

// Patch renders Changes as a PUT body. Cleared dates become explicit nulls.
func Patch(c plan.Changes) map[string]any {
	body := map[string]any{}
	if c.State != nil {
		body["estado"] = EncodeState(*c.State)
	}
	if c.ClearDates {
		body["fecha_inicio"] = nil
		body["fecha_fin"] = nil
	} else {
		if c.StartDate != nil {
			body["fecha_inicio"] = c.StartDate.String()
		}
		if c.EndDate != nil {
			body["fecha_fin"] = c.EndDate.String()
		}
	}
	if c.ReviewSubmitted != nil {
		body["resena_completada"] = *c.ReviewSubmitted
	}
	if c.Review != nil {
		body["resena"] = ReviewRecord{Stars: c.Review.Stars, Comment: c.Review.Comment}
	}
	return body
}

// DecodePatch is the inverse of Patch, used by the service side.
// Unknown fields are ignored; malformed known fields are errors.
func DecodePatch(data []byte) (plan.Changes, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return plan.Changes{}, fmt.Errorf("decode patch: %w", err)
	}

	var c plan.Changes
	if raw, ok := fields["estado"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return plan.Changes{}, fmt.Errorf("estado: %w", err)
		}
		st, err := DecodeState(s)
		if err != nil {
			return plan.Changes{}, err
		}
		c.State = &st
	}

	for _, f := range []struct {
		name string
		dst  **calendar.Date
	}{{"fecha_inicio", &c.StartDate}, {"fecha_fin", &c.EndDate}} {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		if isNull(raw) {
			c.ClearDates = true
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return plan.Changes{}, fmt.Errorf("%s: %w", f.name, err)
		}
		d, err := calendar.Coerce(s)
		if err != nil {
			return plan.Changes{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = &d
	}
	if c.ClearDates {
		c.StartDate, c.EndDate = nil, nil
	}

	if raw, ok := fields["resena_completada"]; ok {
		var f Flag
		if err := f.UnmarshalJSON(raw); err != nil {
			return plan.Changes{}, fmt.Errorf("resena_completada: %w", err)
		}
		c.ReviewSubmitted = plan.BoolPtr(bool(f))
	}
	if raw, ok := fields["resena"]; ok && !isNull(raw) {
		var r ReviewRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return plan.Changes{}, fmt.Errorf("resena: %w", err)
		}
		c.Review = &plan.Review{Stars: r.Stars, Comment: r.Comment}
	}
	return c, nil
}
