package api

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed docs/swagger.json
var swaggerJSON []byte

const swaggerJSONPath = "/docs/swagger.json"

// registerDocs serves the OpenAPI document and the Swagger UI.
func registerDocs(r *gin.Engine) {
	r.GET(swaggerJSONPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", swaggerJSON)
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(swaggerJSONPath)))
}
