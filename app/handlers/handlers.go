// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/tally/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// InertiaHeader marks requests issued by an Inertia client; they expect the page object as JSON.
const InertiaHeader = "X-Inertia"

type responseFormat int

const (
	formatJSON responseFormat = iota
	formatHTML
	formatInertia
)

// negotiate picks the representation of a page response.
// Requests without an Accept header get JSON.
func negotiate(c fiber.Ctx) responseFormat {
	if strings.EqualFold(c.Get(InertiaHeader), "true") {
		return formatInertia
	}
	if c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
		return formatHTML
	}
	return formatJSON
}

// createRequestContext derives the context handed to business flows.
// The caller must invoke the returned cancel function.
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return createRequestContextWithTimeout(c, endpoint, utils.RequestTimeout)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestIDOf(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func requestIDOf(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
