package command

import (
	"context"

	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
)

// Response status codes.
const (
	StatusOK            = 200
	StatusUnknownMethod = 404
	StatusFailed        = 500
)

// ResponseBuilder produces the status and payload answering req.
type ResponseBuilder func(ctx context.Context, req hub.MethodRequest, f Filter) (status int, payload any, err error)

// GenericResponse answers 200 {"result":true,"data":"executed <method>"}
// for a named filter and 404 {"result":false,"data":"unknown method"} for
// the wildcard.
func GenericResponse(_ context.Context, _ hub.MethodRequest, f Filter) (int, any, error) {
	if f.Method() == "" {
		return StatusUnknownMethod, resultPayload(false, "unknown method"), nil
	}
	return StatusOK, resultPayload(true, "executed "+f.Method()), nil
}

// ComponentResponse answers with the component's own response to the
// filter's method.
func ComponentResponse(r component.Responder) ResponseBuilder {
	return func(ctx context.Context, req hub.MethodRequest, f Filter) (int, any, error) {
		payload, err := r.Respond(ctx, f.Method(), req.Payload)
		if err != nil {
			return 0, nil, err
		}
		return StatusOK, payload, nil
	}
}

func resultPayload(result bool, data string) map[string]any {
	return map[string]any{"result": result, "data": data}
}
