package hub

import (
	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/hub/handler"
)

// NewRouter creates and configures the Gin router with all routes.
func NewRouter(store *db.Store, cfg *Config) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	admin := AdminAuth(cfg.AdminToken)
	authed := SessionAuth(store)

	v1 := r.Group("/v1")
	{
		// Session lifecycle
		v1.POST("/session/attest", handler.HandleAttest(store, cfg.TokenTTL))
		v1.POST("/session/refresh", authed, handler.HandleRefresh(store, cfg.TokenTTL))
		v1.POST("/session/logout", handler.HandleLogout(store, cfg.LogoutRedirectURI))

		// Network topology
		v1.GET("/network/home", authed, handler.HandleHomeIdentity(store, cfg.NodeName))
		// Identity is public metadata so partner hubs can answer clients
		// holding tokens issued elsewhere.
		v1.GET("/network/identity", handler.HandleNodeIdentity(cfg.NodeName))

		// Session resources
		v1.GET("/resources/export", authed, handler.HandleExportOptions())
		v1.GET("/resources/import", authed, handler.HandleImportOptions(store))
		v1.GET("/resources/concepts/root", authed, handler.HandleRootConcepts(store))
		v1.GET("/resources/datasets", authed, handler.HandleDatasetCatalog(store))
		v1.GET("/resources/queries/saved", authed, handler.HandleSavedQueries(store))
		v1.POST("/resources/concepts/extensions", authed, handler.HandleExtensionConcepts(store))

		// Admin provisioning
		v1.POST("/admin/users", admin, handler.HandleCreateUser(store))
		v1.PUT("/admin/partners", admin, handler.HandlePutPartner(store))
		v1.PUT("/admin/datasets", admin, handler.HandlePutDataset(store))
		v1.PUT("/admin/concepts", admin, handler.HandlePutConcept(store))
		v1.PUT("/admin/queries", admin, handler.HandlePutSavedQuery(store))
	}

	return r
}
