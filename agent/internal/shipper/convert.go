package shipper

import (
	"time"

	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/pkg/types"
)

// ShipResult converts an engine result to a record and enqueues it.
func (s *Shipper) ShipResult(sessionID, exercise string, seq uint64, res pose.Result) {
	s.Ship(types.FromResult(sessionID, exercise, seq, res))
}

// ShipError enqueues a record telling the server that frame seq of the
// session could not be read.
func (s *Shipper) ShipError(sessionID, exercise string, seq uint64, at time.Time, err error) {
	s.Ship(errorRecord(sessionID, exercise, seq, at, err))
}

// errorRecord builds a record that carries only the failure. It has no
// angles and is never valid.
func errorRecord(sessionID, exercise string, seq uint64, at time.Time, err error) *types.AnalysisRecord {
	return &types.AnalysisRecord{
		SessionID:       sessionID,
		Exercise:        exercise,
		Sequence:        seq,
		TimestampUnixMs: at.UnixMilli(),
		Angles:          map[string]*float64{},
		Violations:      []pose.Violation{},
		ErrorMessage:    err.Error(),
	}
}
