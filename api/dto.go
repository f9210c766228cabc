/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures the plan service answers with that are not
  part of the shared wire package. Plan records, auth bodies and patches
  live in wire so the client and this server cannot disagree on them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

TYPES:
  Catalog:
    DestinationDTO, TourDTO

  Errors:
    ErrorResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - wire/plan.go: Plan record fields
*/
package api

import (
	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/wire"
)

// =============================================================================
// CATALOG
// =============================================================================

// DestinationDTO is a destination as GET /api/destinos returns it.
type DestinationDTO struct {
	ID          string        `json:"id"`
	Name        string        `json:"nombre"`
	Location    string        `json:"ubicacion"`
	Kind        string        `json:"tipo"`
	Price       wire.Amount   `json:"precio"`
	Duration    string        `json:"duracion"`
	Budget      string        `json:"presupuesto"`
	Image       string        `json:"imagen"`
	Description string        `json:"descripcion"`
	Expenses    wire.Expenses `json:"gastos"`
	Tours       []TourDTO     `json:"tours"`
}

type TourDTO struct {
	Name        string        `json:"nombre"`
	Description string        `json:"descripcion"`
	Price       wire.Amount   `json:"precio"`
	Includes    []string      `json:"incluye"`
	Expenses    wire.Expenses `json:"gastos"`
}

func toDestinationDTO(d catalog.Destination) DestinationDTO {
	dto := DestinationDTO{
		ID:          d.ID,
		Name:        d.Name,
		Location:    d.Location,
		Kind:        d.Kind,
		Price:       wire.NewAmount(d.Price),
		Duration:    d.Duration,
		Budget:      d.Budget,
		Image:       d.Image,
		Description: d.Description,
		Expenses:    wire.Expenses(d.Expenses),
		Tours:       make([]TourDTO, len(d.Tours)),
	}
	for i, t := range d.Tours {
		includes := t.Includes
		if includes == nil {
			includes = []string{}
		}
		dto.Tours[i] = TourDTO{
			Name:        t.Name,
			Description: t.Description,
			Price:       wire.NewAmount(t.Price),
			Includes:    includes,
			Expenses:    wire.Expenses(t.Expenses),
		}
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx answer. Clients show Error as is.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse answers GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
