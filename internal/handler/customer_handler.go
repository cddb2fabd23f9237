package handler

import (
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type CustomerHandler struct {
	service service.CustomerService
}

func NewCustomerHandler(s service.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: s}
}

// PointsRequest sets a customer's balance, optionally pinning the tier.
type PointsRequest struct {
	LoyaltyPoints *int        `json:"loyalty_points"`
	Tier          *model.Tier `json:"tier"`
}

// GET /api/v1/customers?search=&tier=
func (h *CustomerHandler) GetCustomers(c *fiber.Ctx) error {
	customers, err := h.service.ListCustomers(c.UserContext(), repository.CustomerFilter{
		Search: c.Query("search"),
		Tier:   model.Tier(c.Query("tier")),
	})
	if err != nil {
		return err
	}
	return c.JSON(customers)
}

// GET /api/v1/customers/:id
func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.service.GetCustomer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

// POST /api/v1/customers
func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	var req service.CreateCustomerRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	customer, err := h.service.CreateCustomer(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Customer created", "data": customer})
}

// UpdateCustomer applies a partial update. Touching points or tier needs the
// loyalty privilege on top of customer:update.
// PATCH /api/v1/customers/:id
func (h *CustomerHandler) UpdateCustomer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var patch model.CustomerPatch
	if err := bindJSON(c, &patch); err != nil {
		return err
	}
	if (patch.LoyaltyPoints != nil || patch.Tier != nil) && !hasPrivilege(c, model.PrivLoyaltyAdjust) {
		return apperror.New(apperror.CodeForbidden, "requires '"+model.PrivLoyaltyAdjust+"' privilege")
	}
	customer, err := h.service.UpdateCustomer(c.UserContext(), id, patch, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Customer updated", "data": customer})
}

// PUT /api/v1/customers/:id/points
func (h *CustomerHandler) UpdatePoints(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req PointsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.LoyaltyPoints == nil && req.Tier == nil {
		return apperror.Validation("loyalty_points or tier is required")
	}
	customer, err := h.service.ApplyPointsUpdate(c.UserContext(), id, req.LoyaltyPoints, req.Tier, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Loyalty updated", "data": customer})
}

// DELETE /api/v1/customers/:id
func (h *CustomerHandler) DeleteCustomer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteCustomer(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Customer deleted"})
}
