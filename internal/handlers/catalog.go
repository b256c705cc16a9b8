package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/backend/processing"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// ModelCatalog lists the transformation models.
type ModelCatalog interface {
	Catalog() ([]processing.ModelInfo, error)
}

// CatalogAPI serves the read-only model catalog.
type CatalogAPI struct {
	catalog ModelCatalog
	log     *zap.Logger
}

// NewCatalogAPI creates a new CatalogAPI.
func NewCatalogAPI(catalog ModelCatalog, log *zap.Logger) *CatalogAPI {
	return &CatalogAPI{catalog: catalog, log: log}
}

// RegisterRoutes registers the catalog routes with the given router.
func (a *CatalogAPI) RegisterRoutes(router *gin.Engine) {
	modelRoutes := router.Group("/api/v1/models")
	{
		modelRoutes.GET("", a.listModelsHandler)
		modelRoutes.GET("/:name", a.getModelHandler)
	}
}

func (a *CatalogAPI) listModelsHandler(c *gin.Context) {
	catalog, err := a.catalog.Catalog()
	if err != nil {
		a.log.Error("Failed to build model catalog", zap.Error(err))
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to build model catalog.", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, gin.H{"models": catalog, "total": len(catalog)})
}

func (a *CatalogAPI) getModelHandler(c *gin.Context) {
	name := c.Param("name")
	catalog, err := a.catalog.Catalog()
	if err != nil {
		a.log.Error("Failed to build model catalog", zap.Error(err))
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to build model catalog.", nil)
		return
	}
	for _, m := range catalog {
		if m.Name == name {
			RespondWithSuccess(c, http.StatusOK, m)
			return
		}
	}
	RespondWithError(c, http.StatusNotFound, models.ErrorCodeModelNotFound, "Model not found.", gin.H{"name": name})
}
