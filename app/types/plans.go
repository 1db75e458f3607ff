package types

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-plans/app/dto"
)

const (
	WebhookSignatureHeader = "x-webhook-signature"
	PlansSourceHeader      = "X-Plans-Source"

	maxWebhookBodySize = 64 << 10
)

type GetPlansRequest struct {
	Refresh bool
}

// NewGetPlansRequestFromContext reads ?refresh. Values that are not a
// boolean read as false so the plans list is still served.
func NewGetPlansRequestFromContext(ctx echo.Context) *GetPlansRequest {
	refresh, err := strconv.ParseBool(strings.TrimSpace(ctx.QueryParam("refresh")))
	if err != nil {
		return &GetPlansRequest{}
	}
	return &GetPlansRequest{Refresh: refresh}
}

type PlansWebhookRequest struct {
	Signature string
	Event     string
	Timestamp string
}

// NewPlansWebhookRequestFromContext reads the signature header and the
// optional {event, timestamp} body. A missing or malformed body is not an
// error; only the signature decides whether the webhook is accepted.
func NewPlansWebhookRequestFromContext(ctx echo.Context) *PlansWebhookRequest {
	req := &PlansWebhookRequest{
		Signature: ctx.Request().Header.Get(WebhookSignatureHeader),
	}

	if ctx.Request().Body == nil {
		return req
	}

	decoder := json.NewDecoder(io.LimitReader(ctx.Request().Body, maxWebhookBodySize))
	decoder.UseNumber()

	var body dto.WebhookRequest
	if err := decoder.Decode(&body); err == nil {
		req.Event = strings.TrimSpace(body.Event)
		req.Timestamp = timestampString(body.Timestamp)
	}
	return req
}

func timestampString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
