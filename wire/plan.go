/*
Package wire defines the JSON contract of the remote plan service.

PURPOSE:
  The service speaks Spanish field names and loose types. Everything that
  crosses the network goes through the records here; the rest of the engine
  only sees plan.Plan.

RECORD FIELDS:
  id                 string | number, assigned by the server
  destino_id         catalog destination id
  destino, tour      display names
  precio             number | numeric string
  estado             borrador | pendiente | confirmado | cancelado | completado
  fecha_inicio/fin   DD/MM/YYYY (YYYY-MM-DD and RFC 3339 accepted), null when absent
  resena_completada  bool
  resena             {estrellas, comentario}, optional
  gastos             ordered object category -> amount
  duracion           label such as "4 días / 3 noches"
  duracion_dias      number of days
  imagen, ubicacion  display fields

LIST RESPONSES:
  A bare array, or an object wrapping it in "planes" or "data".

PARTIAL UPDATES:
  PUT bodies carry only the changed fields. An explicit null on either
  date clears both.

SEE ALSO:
  - remote/client.go: Sends and receives these records
  - api/handlers.go: Serves them
  - plan/normalize.go: Applied to every decoded record
*/
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
)

var (
	// ErrUnexpectedShape is returned when a body is neither a record list nor a wrapper.
	ErrUnexpectedShape = errors.New("unexpected response shape")

	// ErrUnknownState is returned for an estado outside the lifecycle.
	ErrUnknownState = fmt.Errorf("%w: unknown estado", plan.ErrInvalidState)
)

// =============================================================================
// STATE NAMES
// =============================================================================

var stateNames = map[plan.State]string{
	plan.StateDraft:     "borrador",
	plan.StatePending:   "pendiente",
	plan.StateConfirmed: "confirmado",
	plan.StateCancelled: "cancelado",
	plan.StateCompleted: "completado",
}

func EncodeState(s plan.State) string { return stateNames[s] }

// DecodeState accepts the wire names and, leniently, the English ones.
func DecodeState(s string) (plan.State, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for st, wireName := range stateNames {
		if name == wireName {
			return st, nil
		}
	}
	if st, err := plan.ParseState(name); err == nil {
		return st, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownState, s)
}

// =============================================================================
// RECORDS
// =============================================================================

type ReviewRecord struct {
	Stars   int    `json:"estrellas"`
	Comment string `json:"comentario,omitempty"`
}

type PlanRecord struct {
	ID              ID            `json:"id,omitempty"`
	DestinationID   string        `json:"destino_id"`
	Destination     string        `json:"destino"`
	Tour            string        `json:"tour"`
	Price           Amount        `json:"precio"`
	State           string        `json:"estado"`
	StartDate       *string       `json:"fecha_inicio"`
	EndDate         *string       `json:"fecha_fin"`
	ReviewSubmitted Flag          `json:"resena_completada"`
	Review          *ReviewRecord `json:"resena,omitempty"`
	Expenses        Expenses      `json:"gastos,omitempty"`
	Duration        string        `json:"duracion,omitempty"`
	DurationDays    Count         `json:"duracion_dias,omitempty"`
	Image           string        `json:"imagen,omitempty"`
	Location        string        `json:"ubicacion,omitempty"`

	// DecodeErr is set by DecodeList for a record it could not read.
	DecodeErr error `json:"-"`
}

// CreateRecord is the POST body for a new plan.
func CreateRecord(d plan.Draft) PlanRecord {
	p := d.Plan()
	return PlanRecord{
		DestinationID: p.DestinationID,
		Destination:   p.DestinationName,
		Tour:          p.TourName,
		Price:         NewAmount(p.Price),
		State:         EncodeState(plan.StateDraft),
		Expenses:      Expenses(p.Expenses),
		Duration:      p.DurationLabel,
		DurationDays:  Count(p.DurationDays),
		Image:         p.Image,
		Location:      p.Location,
	}
}

// FromPlan renders a plan as the service stores it.
func FromPlan(p plan.Plan) PlanRecord {
	rec := PlanRecord{
		ID:              ID(p.ID),
		DestinationID:   p.DestinationID,
		Destination:     p.DestinationName,
		Tour:            p.TourName,
		Price:           NewAmount(p.Price),
		State:           EncodeState(p.State),
		ReviewSubmitted: Flag(p.ReviewSubmitted),
		Expenses:        Expenses(p.Expenses.Clone()),
		Duration:        p.DurationLabel,
		DurationDays:    Count(p.DurationDays),
		Image:           p.Image,
		Location:        p.Location,
	}
	if p.StartDate != nil {
		s := p.StartDate.String()
		rec.StartDate = &s
	}
	if p.EndDate != nil {
		s := p.EndDate.String()
		rec.EndDate = &s
	}
	if p.Review != nil {
		rec.Review = &ReviewRecord{Stars: p.Review.Stars, Comment: p.Review.Comment}
	}
	return rec
}

// ToPlan converts and normalizes a record. The returned notes list
// everything that had to be repaired.
func (r PlanRecord) ToPlan() (plan.Plan, []string, error) {
	if r.DecodeErr != nil {
		return plan.Plan{}, nil, r.DecodeErr
	}
	if r.ID == "" {
		return plan.Plan{}, nil, plan.ErrMissingID
	}
	st, err := DecodeState(r.State)
	if err != nil {
		return plan.Plan{}, nil, fmt.Errorf("plan %s: %w", r.ID, err)
	}
	p := plan.Plan{
		ID:              plan.ID(r.ID),
		DestinationID:   r.DestinationID,
		DestinationName: r.Destination,
		TourName:        r.Tour,
		Price:           r.Price.Value,
		DurationLabel:   r.Duration,
		DurationDays:    int(r.DurationDays),
		Expenses:        plan.Expenses(r.Expenses).Clone(),
		State:           st,
		ReviewSubmitted: bool(r.ReviewSubmitted),
		Image:           r.Image,
		Location:        r.Location,
	}
	var notes []string
	p.StartDate, notes = coerceDate("fecha_inicio", r.StartDate, notes)
	p.EndDate, notes = coerceDate("fecha_fin", r.EndDate, notes)
	if r.Review != nil {
		p.Review = &plan.Review{Stars: r.Review.Stars, Comment: r.Review.Comment}
	}

	p, fixes := plan.Normalize(p)
	return p, append(notes, fixes...), nil
}

func coerceDate(field string, s *string, notes []string) (*calendar.Date, []string) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, notes
	}
	d, err := calendar.Coerce(*s)
	if err != nil {
		return nil, append(notes, field+" unreadable")
	}
	return &d, notes
}

// =============================================================================
// LIST / SINGLE DECODING
// =============================================================================

type listWrapper struct {
	Planes []json.RawMessage `json:"planes"`
	Data   []json.RawMessage `json:"data"`
}

// DecodeList reads a list response: an array or a {"planes"|"data": [...]} wrapper.
// A record that cannot be decoded does not fail the list; it comes back
// with DecodeErr set and ToPlan rejects it.
func DecodeList(data []byte) ([]PlanRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrUnexpectedShape
	}
	switch data[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode plan list: %w", err)
		}
		return decodeRecords(raws), nil
	case '{':
		var w listWrapper
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode plan list: %w", err)
		}
		if w.Planes != nil {
			return decodeRecords(w.Planes), nil
		}
		if w.Data != nil {
			return decodeRecords(w.Data), nil
		}
		return nil, ErrUnexpectedShape
	}
	return nil, ErrUnexpectedShape
}

func decodeRecords(raws []json.RawMessage) []PlanRecord {
	recs := make([]PlanRecord, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &recs[i]); err != nil {
			var id struct {
				ID ID `json:"id"`
			}
			_ = json.Unmarshal(raw, &id)
			recs[i] = PlanRecord{ID: id.ID, DecodeErr: fmt.Errorf("decode plan record: %w", err)}
		}
	}
	return recs
}

type singleWrapper struct {
	Plan *PlanRecord `json:"plan"`
	Data *PlanRecord `json:"data"`
}

// DecodeOne reads a single record, bare or wrapped in "plan" or "data".
func DecodeOne(data []byte) (PlanRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return PlanRecord{}, ErrUnexpectedShape
	}
	var w singleWrapper
	if err := json.Unmarshal(data, &w); err == nil {
		if w.Plan != nil {
			return *w.Plan, nil
		}
		if w.Data != nil {
			return *w.Data, nil
		}
	}
	var rec PlanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PlanRecord{}, fmt.Errorf("decode plan: %w", err)
	}
	return rec, nil
}
