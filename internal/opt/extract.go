package opt

import (
	"bytes"
	"encoding/json"
	"errors"

	"routeopt/internal/model"
)

// Extract renders an assignment as an ok response. Every vehicle gets a
// route list, empty ones included, in vehicle order.
func Extract(a *Assignment) model.SolveResponse {
	routes := make([][]int, len(a.Routes))
	for i, r := range a.Routes {
		routes[i] = append(make([]int, 0, len(r.Visits)), r.Visits...)
	}
	cost := a.Cost()
	return model.SolveResponse{Status: model.StatusOK, Routes: routes, TotalDistance: &cost}
}

// ExtractError maps a failed solve onto the status contract: construction
// failures are no_solution, everything else is error.
func ExtractError(err error) model.SolveResponse {
	if errors.Is(err, ErrNoFeasibleConstruction) {
		return model.SolveResponse{Status: model.StatusNoSolution, Msg: err.Error()}
	}
	return model.SolveResponse{Status: model.StatusError, Msg: err.Error()}
}

// Encode serializes a response deterministically: no HTML escaping and a
// trailing newline, the way json.Encoder writes.
func Encode(resp model.SolveResponse) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
