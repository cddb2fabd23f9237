package handler

import (
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	service service.CatalogService
}

func NewProductHandler(s service.CatalogService) *ProductHandler {
	return &ProductHandler{service: s}
}

// GetProducts lists the catalog
// GET /api/v1/products?search=&category_id=&sort=price_asc|price_desc|name|newest
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	categoryID, err := queryID(c, "category_id")
	if err != nil {
		return err
	}
	sort := c.Query("sort")
	switch sort {
	case "", repository.SortPriceAsc, repository.SortPriceDesc, repository.SortName, repository.SortNewest:
	default:
		return apperror.Validation("sort must be one of price_asc, price_desc, name, newest")
	}

	products, err := h.service.ListProducts(c.UserContext(), repository.ProductFilter{
		Search:     c.Query("search"),
		CategoryID: categoryID,
		Sort:       sort,
	})
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.CreateProduct(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PATCH /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var patch model.ProductPatch
	if err := bindJSON(c, &patch); err != nil {
		return err
	}
	updated, err := h.service.UpdateProduct(c.UserContext(), id, patch, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// DELETE /api/v1/products/:id
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteProduct(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// GET /api/v1/categories
func (h *ProductHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

// POST /api/v1/categories
func (h *ProductHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.CreateCategory(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Category created", "data": category})
}

// PUT /api/v1/categories/:id
func (h *ProductHandler) RenameCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.CategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.RenameCategory(c.UserContext(), id, &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category updated", "data": category})
}

// DELETE /api/v1/categories/:id
func (h *ProductHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteCategory(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
