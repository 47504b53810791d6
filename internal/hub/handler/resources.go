package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/session"
)

// HandleExportOptions handles GET /v1/resources/export.
func HandleExportOptions() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, session.ExportOptions{
			Formats:  []string{"csv", "json"},
			RowLimit: 50000,
		})
	}
}

// HandleImportOptions handles GET /v1/resources/import. Sources are the
// distinct extension sources present in the concept table.
func HandleImportOptions(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources, err := store.ListConceptSources()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, session.ImportOptions{
			Sources: sources,
			Enabled: len(sources) > 0,
		})
	}
}

// HandleRootConcepts handles GET /v1/resources/concepts/root.
func HandleRootConcepts(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		concepts, err := store.ListRootConcepts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, concepts)
	}
}

// HandleDatasetCatalog handles GET /v1/resources/datasets.
func HandleDatasetCatalog(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasets, err := store.ListDatasets()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, datasets)
	}
}

// HandleSavedQueries handles GET /v1/resources/queries/saved for the
// session's user.
func HandleSavedQueries(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queries, err := store.ListSavedQueries(c.GetString(CtxUsername))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, queries)
	}
}

type extensionConceptsRequest struct {
	Sources       []string `json:"sources"`
	SavedQueryIDs []string `json:"saved_query_ids"`
}

// HandleExtensionConcepts handles POST /v1/resources/concepts/extensions.
func HandleExtensionConcepts(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extensionConceptsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		concepts, err := store.ListConceptsBySources(req.Sources)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, concepts)
	}
}
