package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/requester"
	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

// RFQHandler exposes the HTTP trigger for sending a quote request.
type RFQHandler struct {
	logger    *zap.Logger
	requester *requester.Requester
}

// NewRFQHandler constructs the trigger handler.
func NewRFQHandler(logger *zap.Logger, r *requester.Requester) *RFQHandler {
	return &RFQHandler{logger: logger, requester: r}
}

// swapRequest is the HTTP body shape; the bucket is never caller-supplied.
type swapRequest struct {
	From model.WeightedSide `json:"from"`
	To   model.WeightedSide `json:"to"`
}

// SampleRequest is the built-in swap sent when the trigger body is empty.
func SampleRequest() *model.QuoteRequest {
	return &model.QuoteRequest{
		From: model.WeightedSide{
			Network: "mainnet",
			Tokens:  []model.TokenWeight{{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Weight: 1000}},
		},
		To: model.WeightedSide{
			Network: "base",
			Tokens: []model.TokenWeight{
				{Address: "0x4200000000000000000000000000000000000006", Weight: 30},
				{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Weight: 70},
			},
		},
	}
}

// SendRFQ publishes a quote request. With ?wait=1 it blocks for the response
// (bounded by the configured response timeout) and returns the quote;
// otherwise it returns 202 immediately with the session bucket.
func (h *RFQHandler) SendRFQ(c *fiber.Ctx) error {
	correlationID := uuid.New()

	req := SampleRequest()
	if len(c.Body()) > 0 {
		var body swapRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		req = &model.QuoteRequest{From: body.From, To: body.To}
	}

	h.logger.Info("api.rfq_trigger",
		zap.String("correlation_id", correlationID.String()),
		zap.String("bucket", h.requester.Bucket()),
		zap.Bool("wait", c.QueryBool("wait")))

	if err := h.requester.SendRequest(c.Context(), req); err != nil {
		h.logger.Error("api.rfq_send_failed",
			zap.String("correlation_id", correlationID.String()),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":          "failed to publish request",
			"correlation_id": correlationID,
		})
	}

	if !c.QueryBool("wait") {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":         "sent",
			"bucket":         h.requester.Bucket(),
			"correlation_id": correlationID,
		})
	}

	resp, err := h.requester.AwaitResponse(c.Context())
	if err != nil {
		if errors.Is(err, requester.ErrNoResponse) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error":          "no response within timeout",
				"bucket":         h.requester.Bucket(),
				"correlation_id": correlationID,
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
	}

	return c.JSON(fiber.Map{
		"bucket":         h.requester.Bucket(),
		"correlation_id": correlationID,
		"quote":          resp,
	})
}
