package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/models"
)

// AccountHandler manages admin panel logins. Admin only.
type AccountHandler struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewAccountHandler(db *gorm.DB, audit *audit.Service) *AccountHandler {
	return &AccountHandler{db: db, audit: audit}
}

type accountInput struct {
	Username string  `json:"username"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Title    *string `json:"title"`
	Admin    *bool   `json:"admin"`
	Disabled *bool   `json:"disabled"`
}

func (h *AccountHandler) List(c *gin.Context) {
	q := h.db.Model(&models.Account{}).Order("username asc")
	q = like(c, q, "username", "username")
	q = like(c, q, "name", "name")

	var accounts []models.Account
	list(c, q, &accounts, "Groups.Group")
}

func (h *AccountHandler) Get(c *gin.Context) {
	accountID, ok := parseID(c, "id", "account")
	if !ok {
		return
	}
	var account models.Account
	if err := h.db.Preload("Groups.Group").First(&account, accountID).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Create(c *gin.Context, id *auth.Identity) {
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Username == "" || input.Password == nil || *input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	hash, err := auth.HashPassword(*input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	account := models.Account{Username: input.Username, Password: hash}
	applyAccountInput(&account, &input)

	if err := h.db.Create(&account).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "account", account.ID, account)
	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) Update(c *gin.Context, id *auth.Identity) {
	accountID, ok := parseID(c, "id", "account")
	if !ok {
		return
	}
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var account models.Account
	if err := h.db.First(&account, accountID).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}

	if input.Username != "" {
		account.Username = input.Username
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		account.Password = hash
	}
	applyAccountInput(&account, &input)

	if account.ID == id.AccountID && (!account.IsAdmin() || account.IsDisabled()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot remove your own admin rights"})
		return
	}

	if err := h.db.Save(&account).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "account", account.ID, account)
	c.JSON(http.StatusOK, account)
}

// Delete soft-deletes the account. Tokens already issued to it stop
// working on the next request.
func (h *AccountHandler) Delete(c *gin.Context, id *auth.Identity) {
	accountID, ok := parseID(c, "id", "account")
	if !ok {
		return
	}
	if accountID == id.AccountID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	var account models.Account
	if err := h.db.First(&account, accountID).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}
	if err := h.db.Delete(&account).Error; err != nil {
		respondDBError(c, err, "Account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "account", account.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

func applyAccountInput(account *models.Account, input *accountInput) {
	if input.Name != nil {
		account.Name = *input.Name
	}
	if input.Title != nil {
		account.Title = *input.Title
	}
	if input.Admin != nil {
		account.Admin = boolFlag(*input.Admin)
	}
	if input.Disabled != nil {
		account.Disabled = boolFlag(*input.Disabled)
	}
}
