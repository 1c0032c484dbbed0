package api

import (
	"encoding/json"

	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

// Envelope is the backend's success wrapper.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type rawEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode reads a response body as T. Bodies wrapped in {success, message,
// data} are unwrapped; bodies without a data member are decoded whole. An
// envelope with success=false becomes a server *Error.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || len(resp.Data) == 0 {
		return out, sberrors.New(sberrors.ErrCodeAPIDecode, "empty response body")
	}

	var env rawEnvelope
	if err := json.Unmarshal(resp.Data, &env); err == nil {
		if env.Success != nil && !*env.Success {
			msg := env.Message
			if msg == "" {
				msg = "request was not successful"
			}
			return out, &Error{Kind: KindServer, Status: resp.Status, Message: msg}
		}
		if env.Data != nil {
			if err := json.Unmarshal(env.Data, &out); err != nil {
				return out, sberrors.Wrap(sberrors.ErrCodeAPIDecode, "failed to decode response data", err)
			}
			return out, nil
		}
	}

	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, sberrors.Wrap(sberrors.ErrCodeAPIDecode, "failed to decode response", err)
	}
	return out, nil
}
