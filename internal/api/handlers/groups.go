package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/models"
)

// GroupHandler manages permission groups and their memberships. Admin only.
type GroupHandler struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewGroupHandler(db *gorm.DB, audit *audit.Service) *GroupHandler {
	return &GroupHandler{db: db, audit: audit}
}

type groupInput struct {
	Name             string  `json:"name"`
	Title            *string `json:"title"`
	AccessRouter     *int    `json:"access_router"`
	AccessUser       *int    `json:"access_user"`
	AccessDepartment *int    `json:"access_department"`
	AccessMail       *int    `json:"access_mail"`
}

// apply copies the set fields onto g. Access levels must be 0, 1 or 2.
func (in *groupInput) apply(g *models.Group) bool {
	if in.Name != "" {
		g.Name = in.Name
	}
	if in.Title != nil {
		g.Title = *in.Title
	}
	for _, f := range []struct {
		src *int
		dst *int
	}{
		{in.AccessRouter, &g.AccessRouter},
		{in.AccessUser, &g.AccessUser},
		{in.AccessDepartment, &g.AccessDepartment},
		{in.AccessMail, &g.AccessMail},
	} {
		if f.src == nil {
			continue
		}
		if !validAccess(*f.src) {
			return false
		}
		*f.dst = *f.src
	}
	return true
}

func (h *GroupHandler) List(c *gin.Context) {
	q := h.db.Model(&models.Group{}).Order("name asc")
	q = like(c, q, "name", "name")
	q = like(c, q, "title", "title")

	var groups []models.Group
	list(c, q, &groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	groupID, ok := parseID(c, "id", "group")
	if !ok {
		return
	}
	var group models.Group
	if err := h.db.Preload("Accounts.Account").First(&group, groupID).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Create(c *gin.Context, id *auth.Identity) {
	var input groupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	var group models.Group
	if !input.apply(&group) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access levels must be 0 (none), 1 (viewer) or 2 (editor)"})
		return
	}
	if err := h.db.Create(&group).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "group", group.ID, group)
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) Update(c *gin.Context, id *auth.Identity) {
	groupID, ok := parseID(c, "id", "group")
	if !ok {
		return
	}
	var input groupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}
	if !input.apply(&group) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access levels must be 0 (none), 1 (viewer) or 2 (editor)"})
		return
	}
	if err := h.db.Save(&group).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "group", group.ID, group)
	c.JSON(http.StatusOK, group)
}

// Delete soft-deletes the group. Existing memberships are kept and keep
// granting the group's levels until they are removed.
func (h *GroupHandler) Delete(c *gin.Context, id *auth.Identity) {
	groupID, ok := parseID(c, "id", "group")
	if !ok {
		return
	}
	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}
	if err := h.db.Delete(&group).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "group", group.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// AddMember joins an account to the group.
func (h *GroupHandler) AddMember(c *gin.Context, id *auth.Identity) {
	groupID, ok := parseID(c, "id", "group")
	if !ok {
		return
	}
	var input struct {
		AccountID uint `json:"account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
		return
	}

	if err := h.db.First(&models.Group{}, groupID).Error; err != nil {
		respondDBError(c, err, "Group")
		return
	}
	if err := h.db.First(&models.Account{}, input.AccountID).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}

	membership := models.AccountGroup{AccountID: input.AccountID, GroupID: groupID}
	if err := h.db.Create(&membership).Error; err != nil {
		respondDBError(c, err, "Membership")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionAddMember, "group", groupID, gin.H{"account_id": input.AccountID})
	c.JSON(http.StatusCreated, membership)
}

// RemoveMember deletes the membership row; the account loses the group's
// levels on its next request.
func (h *GroupHandler) RemoveMember(c *gin.Context, id *auth.Identity) {
	groupID, ok := parseID(c, "id", "group")
	if !ok {
		return
	}
	accountID, ok := parseID(c, "accountId", "account")
	if !ok {
		return
	}

	res := h.db.Where("group_id = ? AND account_id = ?", groupID, accountID).Delete(&models.AccountGroup{})
	if res.Error != nil {
		respondDBError(c, res.Error, "Membership")
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	recordAudit(c, h.audit, id, audit.ActionRemoveMember, "group", groupID, gin.H{"account_id": accountID})
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
