package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/models"
)

// RouterHandler manages routers and their viewer/editor ACLs.
type RouterHandler struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewRouterHandler(db *gorm.DB, audit *audit.Service) *RouterHandler {
	return &RouterHandler{db: db, audit: audit}
}

type routerInput struct {
	Name     string  `json:"name"`
	Host     string  `json:"host"`
	Port     *int    `json:"port"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Title    *string `json:"title"`
	Disabled *bool   `json:"disabled"`
}

func (in *routerInput) apply(r *models.Router) {
	if in.Name != "" {
		r.Name = in.Name
	}
	if in.Host != "" {
		r.Host = in.Host
	}
	if in.Port != nil {
		r.Port = *in.Port
	}
	if in.Username != nil {
		r.Username = *in.Username
	}
	if in.Password != nil && *in.Password != "" {
		r.Password = *in.Password
	}
	if in.Title != nil {
		r.Title = *in.Title
	}
	if in.Disabled != nil {
		r.Disabled = boolFlag(*in.Disabled)
	}
}

func (h *RouterHandler) List(c *gin.Context) {
	q := h.db.Model(&models.Router{}).Order("name asc")
	q = like(c, q, "name", "name")
	q = like(c, q, "host", "host")
	q = like(c, q, "title", "title")

	var routers []models.Router
	list(c, q, &routers)
}

func (h *RouterHandler) Get(c *gin.Context) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	var router models.Router
	if err := h.db.First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}
	c.JSON(http.StatusOK, router)
}

func (h *RouterHandler) Create(c *gin.Context, id *auth.Identity) {
	var input routerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Name == "" || input.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and host are required"})
		return
	}

	var router models.Router
	input.apply(&router)
	if err := h.db.Create(&router).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "router", router.ID, router)
	c.JSON(http.StatusCreated, router)
}

func (h *RouterHandler) Update(c *gin.Context, id *auth.Identity) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	var input routerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var router models.Router
	if err := h.db.First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}
	input.apply(&router)
	if err := h.db.Save(&router).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "router", router.ID, router)
	c.JSON(http.StatusOK, router)
}

func (h *RouterHandler) Delete(c *gin.Context, id *auth.Identity) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	var router models.Router
	if err := h.db.First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}
	if err := h.db.Delete(&router).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "router", router.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Router deleted"})
}

type routerACL struct {
	Viewers []uint `json:"viewers"`
	Editors []uint `json:"editors"`
}

// GetACL returns the group ids of both ACL sets.
func (h *RouterHandler) GetACL(c *gin.Context) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	var router models.Router
	if err := h.db.Preload("Viewers").Preload("Editors").First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}
	c.JSON(http.StatusOK, aclOf(&router))
}

// SetACL replaces both ACL sets. The sets are independent: listing a group
// as editor does not make it a viewer.
func (h *RouterHandler) SetACL(c *gin.Context, id *auth.Identity) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	var input routerACL
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var router models.Router
	if err := h.db.First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return
	}

	input.Viewers = uniqueIDs(input.Viewers)
	input.Editors = uniqueIDs(input.Editors)

	all := uniqueIDs(append(append([]uint{}, input.Viewers...), input.Editors...))
	if len(all) > 0 {
		var found int64
		if err := h.db.Model(&models.Group{}).Where("id IN ?", all).Count(&found).Error; err != nil {
			respondDBError(c, err, "Group")
			return
		}
		if int(found) != len(all) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown group in ACL"})
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("router_id = ?", router.ID).Delete(&models.RouterGroupViewer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("router_id = ?", router.ID).Delete(&models.RouterGroupEditor{}).Error; err != nil {
			return err
		}
		for _, g := range input.Viewers {
			if err := tx.Create(&models.RouterGroupViewer{RouterID: router.ID, GroupID: g}).Error; err != nil {
				return err
			}
		}
		for _, g := range input.Editors {
			if err := tx.Create(&models.RouterGroupEditor{RouterID: router.ID, GroupID: g}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondDBError(c, err, "Router ACL")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionGrant, "router", router.ID, input)
	c.JSON(http.StatusOK, input)
}

func aclOf(r *models.Router) routerACL {
	acl := routerACL{Viewers: []uint{}, Editors: []uint{}}
	for _, v := range r.Viewers {
		acl.Viewers = append(acl.Viewers, v.GroupID)
	}
	for _, e := range r.Editors {
		acl.Editors = append(acl.Editors, e.GroupID)
	}
	return acl
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
