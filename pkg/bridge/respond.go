package bridge

import (
	"encoding/json"

	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/google/uuid"
)

// responder builds the outbound script for one engine result.
type responder func(id json.RawMessage, res inject.Result) string

// responders selects the response schema by engine name. Engines not listed
// use the generic envelope.
var responders = map[string]responder{
	inject.LegacyEngine: legacyResponse,
}

func responderFor(engine string) responder {
	if r, ok := responders[engine]; ok {
		return r
	}

	return inject.DispatchResponse
}

// Legacy error codes.
const (
	legacyUnknownError = 100
	legacyRejected     = 300
)

// LegacyPayload reshapes a result for the legacy engine: a sent transaction
// becomes success, any other ok result is a rejection and a failed call is an
// unknown error.
func LegacyPayload(res inject.Result) inject.LegacyPayload {
	if !res.IsOK() {
		return inject.LegacyPayload{
			Type:  "error",
			Error: &inject.LegacyError{Code: legacyUnknownError, Message: "Unknown error"},
		}
	}

	var tx struct {
		State  inject.TxState `json:"state"`
		Result any            `json:"result"`
	}

	if data, err := json.Marshal(res.Data); err == nil {
		_ = json.Unmarshal(data, &tx)
	}

	if tx.State == inject.TxSent {
		return inject.LegacyPayload{Type: "success", Result: tx.Result}
	}

	return inject.LegacyPayload{
		Type:  "error",
		Error: &inject.LegacyError{Code: legacyRejected, Message: "Transaction rejected"},
	}
}

func legacyResponse(id json.RawMessage, res inject.Result) string {
	return inject.DispatchLegacyResponse(id, LegacyPayload(res))
}

func newProbeID() string {
	return uuid.NewString()
}
