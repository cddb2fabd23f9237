package handler

import (
	"strconv"

	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxTransactionPage = 500

type TransactionHandler struct {
	service service.SaleService
}

func NewTransactionHandler(s service.SaleService) *TransactionHandler {
	return &TransactionHandler{service: s}
}

// Checkout records a sale
// POST /api/v1/transactions
func (h *TransactionHandler) Checkout(c *fiber.Ctx) error {
	var req service.CheckoutRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	sale, err := h.service.Checkout(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": sale})
}

// GET /api/v1/transactions?customer_id=&status=&limit=
func (h *TransactionHandler) GetTransactions(c *fiber.Ctx) error {
	customerID, err := queryID(c, "customer_id")
	if err != nil {
		return err
	}
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if limit > maxTransactionPage {
		limit = maxTransactionPage
	}

	transactions, err := h.service.ListTransactions(c.UserContext(), repository.TransactionFilter{
		CustomerID: customerID,
		Status:     model.TransactionStatus(c.Query("status")),
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(transactions)
}

// GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tx, err := h.service.GetTransaction(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

// GET /api/v1/transactions/:id/invoice
func (h *TransactionHandler) GetInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	invoice, err := h.service.Invoice(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// Refund reverses selected items of a sale
// POST /api/v1/transactions/:id/refunds
func (h *TransactionHandler) Refund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.RefundRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	refund, err := h.service.RefundSale(c.UserContext(), id, req.Items, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Refund processed", "data": refund})
}

// GET /api/v1/refunds?transaction_id=
func (h *TransactionHandler) GetRefunds(c *fiber.Ctx) error {
	txID, err := queryID(c, "transaction_id")
	if err != nil {
		return err
	}
	refunds, err := h.service.ListRefunds(c.UserContext(), txID)
	if err != nil {
		return err
	}
	return c.JSON(refunds)
}
