package server

import (
	"github.com/copyleftdev/roots/internal/interp"
	"github.com/copyleftdev/roots/internal/problem"
)

// interpRequest evaluates an interpolant built from the sample table at
// the given abscissae and, optionally, integrates it over [a, b].
type interpRequest struct {
	problem.Table
	At       []float64   `json:"at"`
	Integral *[2]float64 `json:"integral,omitempty"`
}

type interpPoint struct {
	X      float64  `json:"x"`
	Value  *float64 `json:"value,omitempty"`
	Deriv  *float64 `json:"deriv,omitempty"`
	Deriv2 *float64 `json:"deriv2,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type interpResponse struct {
	Kind     string        `json:"kind"`
	Points   []interpPoint `json:"points"`
	Integral *float64      `json:"integral,omitempty"`
	Hits     uint64        `json:"accel_hits"`
	Misses   uint64        `json:"accel_misses"`
}

const (
	interpOK     = "ok"
	interpDomain = "domain"
)

// evalInterp answers an interpRequest. Points outside the table are
// reported per point; only a bad table or integration range fails the
// whole request.
func (s *Server) evalInterp(req interpRequest) (*interpResponse, error) {
	p, err := req.Table.Build()
	if err != nil {
		return nil, err
	}

	acc := interp.NewAccel()
	resp := &interpResponse{
		Kind:   p.Kind().String(),
		Points: make([]interpPoint, 0, len(req.At)),
	}
	for _, x := range req.At {
		pt := interpPoint{X: x}
		y, err := p.Eval(x, acc)
		if err != nil {
			pt.Error = err.Error()
			s.metrics.Interp.WithLabelValues(resp.Kind, interpDomain).Inc()
			resp.Points = append(resp.Points, pt)
			continue
		}
		d, _ := p.Deriv(x, acc)
		d2, _ := p.Deriv2(x, acc)
		pt.Value, pt.Deriv, pt.Deriv2 = finite(y), finite(d), finite(d2)
		s.metrics.Interp.WithLabelValues(resp.Kind, interpOK).Inc()
		resp.Points = append(resp.Points, pt)
	}

	if req.Integral != nil {
		v, err := p.Integ(req.Integral[0], req.Integral[1], acc)
		if err != nil {
			return nil, err
		}
		resp.Integral = finite(v)
	}

	resp.Hits, resp.Misses = acc.Hits(), acc.Misses()
	return resp, nil
}
