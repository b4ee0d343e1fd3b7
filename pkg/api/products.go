package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adminsuite/backoffice/pkg/apiresponses"
	"github.com/adminsuite/backoffice/pkg/audit"
	"github.com/adminsuite/backoffice/pkg/audit/track"
	"github.com/adminsuite/backoffice/pkg/models"
	"github.com/adminsuite/backoffice/pkg/system"
)

const productEntity = "Product"

// ProductController manages the product catalog. Every successful write is
// captured into the audit pipeline after the transaction commits.
type ProductController struct {
	log        *zap.SugaredLogger
	db         *gorm.DB
	audit      *audit.Service
	middleware gin.HandlerFunc
}

func NewProductController(log *zap.SugaredLogger, db *gorm.DB, svc *audit.Service, middleware gin.HandlerFunc) *ProductController {
	return &ProductController{
		log:        log,
		db:         db,
		audit:      svc,
		middleware: middleware,
	}
}

func (ProductController) BasePath() string {
	return "products/"
}

func (pc *ProductController) Register(rg *gin.RouterGroup) error {
	rg.GET("", pc.handleList)
	rg.GET("/:id", pc.handleGet)
	rg.POST("", pc.handleCreate)
	rg.PUT("/:id", pc.handleUpdate)
	rg.DELETE("/:id", pc.handleDelete)

	return nil
}

func (pc ProductController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{pc.middleware}
}

func (pc ProductController) handleList(c *gin.Context) {
	var products []models.Product
	if err := pc.db.WithContext(c.Request.Context()).Order("id").Find(&products).Error; err != nil {
		apiresponses.RespondInternalError(c, "list products", err, system.GetReqLogger(c, pc.log))
		return
	}
	apiresponses.RespondOK(c, products)
}

func (pc ProductController) handleGet(c *gin.Context) {
	var product models.Product
	err := pc.db.WithContext(c.Request.Context()).First(&product, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, productEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load product", err, system.GetReqLogger(c, pc.log))
		return
	}
	apiresponses.RespondOK(c, product)
}

type productRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Stock       int    `json:"stock"`
	Active      *bool  `json:"active"`
}

func (pc ProductController) handleCreate(c *gin.Context) {
	var request productRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	product := models.Product{
		SKU:         request.SKU,
		Name:        request.Name,
		Description: request.Description,
		PriceCents:  request.PriceCents,
		Stock:       request.Stock,
		Active:      true,
	}
	if request.Active != nil {
		product.Active = *request.Active
	}

	if err := pc.db.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			apiresponses.RespondConflict(c, "sku already exists")
			return
		}
		apiresponses.RespondInternalError(c, "create product", err, system.GetReqLogger(c, pc.log))
		return
	}

	pc.audit.Capture(c.Request.Context(), []audit.EntityChange{
		track.Created(productEntity, track.Key(product.ID), product),
	})

	apiresponses.RespondCreated(c, product)
}

func (pc ProductController) handleUpdate(c *gin.Context) {
	var request productRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	var product models.Product
	err := pc.db.WithContext(ctx).First(&product, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, productEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load product", err, system.GetReqLogger(c, pc.log))
		return
	}

	before := product
	product.SKU = request.SKU
	product.Name = request.Name
	product.Description = request.Description
	product.PriceCents = request.PriceCents
	product.Stock = request.Stock
	if request.Active != nil {
		product.Active = *request.Active
	}

	if err := pc.db.WithContext(ctx).Save(&product).Error; err != nil {
		apiresponses.RespondInternalError(c, "update product", err, system.GetReqLogger(c, pc.log))
		return
	}

	// The pipeline diffs old against current; a save without real changes
	// produces no record.
	pc.audit.Capture(ctx, []audit.EntityChange{
		track.Updated(productEntity, track.Key(product.ID), before, product),
	})

	apiresponses.RespondOK(c, product)
}

func (pc ProductController) handleDelete(c *gin.Context) {
	ctx := c.Request.Context()

	var product models.Product
	err := pc.db.WithContext(ctx).First(&product, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, productEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load product", err, system.GetReqLogger(c, pc.log))
		return
	}

	if err := pc.db.WithContext(ctx).Delete(&product).Error; err != nil {
		apiresponses.RespondInternalError(c, "delete product", err, system.GetReqLogger(c, pc.log))
		return
	}

	pc.audit.Capture(ctx, []audit.EntityChange{
		track.Deleted(productEntity, track.Key(product.ID), product),
	})

	apiresponses.RespondNoContent(c)
}
