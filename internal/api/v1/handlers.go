package apiv1

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/FreightFox/FreightFox/internal/pkg/engine"
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
)

// APIServer exposes the sync engine to local UI clients over JSON. Every
// mutation delegates to the engine; handlers only translate between HTTP
// and the engine's rejection taxonomy.
type APIServer struct {
	engine *engine.Engine

	mu       sync.Mutex
	releases map[string]func()
}

// NewAPIServer creates a new API server around the running engine.
func NewAPIServer(e *engine.Engine) *APIServer {
	return &APIServer{
		engine:   e,
		releases: make(map[string]func()),
	}
}

// RegisterHandlers mounts all v1 routes on the given router group.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Get("/ping", s.GetPing)

	r.Get("/bids", s.GetBids)
	r.Post("/bids", s.PostBid)
	r.Put("/bids/:id", s.PutBid)
	r.Post("/bids/:id/accept", s.PostAcceptBid)
	r.Post("/bids/:id/reject", s.PostRejectBid)

	r.Get("/shipments", s.GetShipments)

	r.Get("/subscriptions", s.GetSubscriptions)
	r.Post("/subscriptions", s.PostSubscription)
	r.Post("/subscriptions/confirm", s.PostConfirmSubscription)
	r.Delete("/subscriptions/:id", s.DeleteSubscription)

	r.Get("/verification", s.GetVerification)
	r.Post("/refresh", s.PostRefresh)

	r.Post("/polling", s.PostPollingDemand)
	r.Delete("/polling/:id", s.DeletePollingDemand)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// GetBids returns the locally cached bids.
func (s *APIServer) GetBids(c *fiber.Ctx) error {
	return c.JSON(s.engine.Store().Bids())
}

// PostBid places a new bid.
func (s *APIServer) PostBid(c *fiber.Ctx) error {
	var in engine.CreateBidInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	bid, err := s.engine.CreateBid(c.UserContext(), in)
	if err != nil {
		return rejection(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bid)
}

// PutBid edits a pending bid.
func (s *APIServer) PutBid(c *fiber.Ctx) error {
	var in engine.EditBidInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	bid, err := s.engine.EditBid(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return rejection(c, err)
	}
	return c.JSON(bid)
}

// PostAcceptBid accepts a bid on one of the actor's shipments.
func (s *APIServer) PostAcceptBid(c *fiber.Ctx) error {
	res, err := s.engine.AcceptBid(c.UserContext(), c.Params("id"))
	if err != nil {
		return rejection(c, err)
	}
	return c.JSON(res)
}

// PostRejectBid rejects a bid on one of the actor's shipments.
func (s *APIServer) PostRejectBid(c *fiber.Ctx) error {
	bid, err := s.engine.RejectBid(c.UserContext(), c.Params("id"))
	if err != nil {
		return rejection(c, err)
	}
	return c.JSON(bid)
}

// GetShipments returns the locally cached shipments.
func (s *APIServer) GetShipments(c *fiber.Ctx) error {
	return c.JSON(s.engine.Store().Shipments())
}

// GetSubscriptions returns the locally cached subscriptions.
func (s *APIServer) GetSubscriptions(c *fiber.Ctx) error {
	return c.JSON(s.engine.Store().Subscriptions())
}

// PostSubscription opens a new subscription and hands the payment
// reference back to the UI for the external checkout widget.
func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	var in engine.CreateSubscriptionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := s.engine.CreateSubscription(c.UserContext(), in)
	if err != nil {
		return rejection(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// PostConfirmSubscription reports a completed payment.
func (s *APIServer) PostConfirmSubscription(c *fiber.Ctx) error {
	var in ConfirmRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	sub, err := s.engine.ConfirmSubscription(c.UserContext(), in.Reference)
	if err != nil {
		return rejection(c, err)
	}
	return c.JSON(sub)
}

// DeleteSubscription cancels a subscription. Cancelling twice is
// non-fatal: the UI gets the current record plus a refresh hint instead
// of an error.
func (s *APIServer) DeleteSubscription(c *fiber.Ctx) error {
	sub, err := s.engine.CancelSubscription(c.UserContext(), c.Params("id"))
	if err != nil {
		if marketplace.IsKind(err, marketplace.KindAlreadyCancelled) {
			cur, _ := s.engine.Store().Subscription(c.Params("id"))
			return c.JSON(fiber.Map{
				"subscription": cur,
				"code":         string(marketplace.KindAlreadyCancelled),
				"hint":         "refresh",
			})
		}
		return rejection(c, err)
	}
	return c.JSON(sub)
}

// GetVerification returns the current actor verification record.
func (s *APIServer) GetVerification(c *fiber.Ctx) error {
	v := s.engine.Store().Verification()
	return c.JSON(fiber.Map{
		"verification": v,
		"can_write":    v.CanWrite(),
	})
}

// PostRefresh triggers one immediate full refresh.
func (s *APIServer) PostRefresh(c *fiber.Ctx) error {
	if err := s.engine.RefreshNow(c.UserContext()); err != nil {
		return rejection(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// PostPollingDemand registers UI poll demand, typically while a live
// list view is open. The returned id releases the demand on DELETE.
func (s *APIServer) PostPollingDemand(c *fiber.Ctx) error {
	id := uuid.New().String()
	release := s.engine.RequestPolling()

	s.mu.Lock()
	s.releases[id] = release
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// DeletePollingDemand releases a previously registered poll demand.
func (s *APIServer) DeletePollingDemand(c *fiber.Ctx) error {
	s.mu.Lock()
	release, ok := s.releases[c.Params("id")]
	delete(s.releases, c.Params("id"))
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Code:    string(marketplace.KindUnknown),
			Message: "unknown polling demand id",
		})
	}
	release()
	return c.JSON(fiber.Map{"status": "released"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Code:    string(marketplace.KindValidation),
		Message: msg,
	})
}

// rejection maps the engine's rejection taxonomy onto HTTP statuses.
// already_cancelled never reaches here; DeleteSubscription answers it
// non-fatally.
func rejection(c *fiber.Ctx, err error) error {
	kind := marketplace.KindOf(err)
	resp := ErrorResponse{Code: string(kind), Message: err.Error()}

	switch kind {
	case marketplace.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	case marketplace.KindUnverified:
		return c.Status(fiber.StatusForbidden).JSON(resp)
	case marketplace.KindDuplicateBid, marketplace.KindNotPending,
		marketplace.KindAlreadyActive, marketplace.KindAlreadyCancelled,
		marketplace.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(resp)
	case marketplace.KindTransient:
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
}
