package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/session"
)

type createUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Project   string `json:"project"`
	Federated *bool  `json:"federated"`
}

// HandleCreateUser handles POST /v1/admin/users.
func HandleCreateUser(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}
		federated := true
		if req.Federated != nil {
			federated = *req.Federated
		}

		if err := store.CreateUser(req.Username, req.Password, req.Project, federated); err != nil {
			if err == db.ErrUserExists {
				c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("user %q already exists", req.Username)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"username": req.Username, "status": "created"})
	}
}

// HandlePutPartner handles PUT /v1/admin/partners.
func HandlePutPartner(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p session.PartnerNode
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if p.ID < 1 || p.Address == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "partner requires id >= 1 and an address"})
			return
		}
		if err := store.UpsertPartner(p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "status": "stored"})
	}
}

// HandlePutDataset handles PUT /v1/admin/datasets.
func HandlePutDataset(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ds session.Dataset
		if err := c.ShouldBindJSON(&ds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if ds.ID == "" || ds.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataset requires id and name"})
			return
		}
		if err := store.UpsertDataset(ds); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": ds.ID, "status": "stored"})
	}
}

// HandlePutConcept handles PUT /v1/admin/concepts.
func HandlePutConcept(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var concept session.Concept
		if err := c.ShouldBindJSON(&concept); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if concept.Key == "" || concept.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "concept requires key and name"})
			return
		}
		if err := store.UpsertConcept(concept); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": concept.Key, "status": "stored"})
	}
}

type putSavedQueryRequest struct {
	Username string `json:"username" binding:"required"`
	session.SavedQuery
}

// HandlePutSavedQuery handles PUT /v1/admin/queries.
func HandlePutSavedQuery(store *db.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req putSavedQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.ID == "" || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "saved query requires id and name"})
			return
		}
		if err := store.UpsertSavedQuery(req.Username, req.SavedQuery); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": req.ID, "status": "stored"})
	}
}
