package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/session"
)

type homeResponse struct {
	Identity session.NodeIdentity  `json:"identity"`
	Partners []session.PartnerNode `json:"partners"`
}

// HandleHomeIdentity handles GET /v1/network/home: this hub's own identity
// plus its configured partner descriptors.
func HandleHomeIdentity(store *db.Store, nodeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		partners, err := store.ListPartners()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, homeResponse{
			Identity: session.NodeIdentity{Name: nodeName, IsHome: true, Enabled: true},
			Partners: partners,
		})
	}
}

// HandleNodeIdentity handles GET /v1/network/identity, the endpoint a
// client uses when this hub is queried as a partner node.
func HandleNodeIdentity(nodeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, session.NodeIdentity{Name: nodeName, Enabled: true})
	}
}
