package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/logger"
	"supik-server/internal/models"
	"supik-server/internal/yandex"
)

// MailHandler manages Yandex 360 mailboxes and their local mirror rows.
// Guarded by mail-access.
type MailHandler struct {
	db     *gorm.DB
	yandex *yandex.Client
	audit  *audit.Service
}

func NewMailHandler(db *gorm.DB, yandex *yandex.Client, audit *audit.Service) *MailHandler {
	return &MailHandler{db: db, yandex: yandex, audit: audit}
}

type mailInput struct {
	Nickname     string  `json:"nickname"`
	Password     string  `json:"password"`
	NameFirst    *string `json:"name_first"`
	NameLast     *string `json:"name_last"`
	NameMiddle   *string `json:"name_middle"`
	Position     *string `json:"position"`
	DepartmentID int     `json:"yandex_department_id"`
	UserID       *uint   `json:"user_id"`
	Disabled     *bool   `json:"disabled"`
}

func (in *mailInput) apply(m *models.Mail) {
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{in.NameFirst, &m.NameFirst},
		{in.NameLast, &m.NameLast},
		{in.NameMiddle, &m.NameMiddle},
		{in.Position, &m.Position},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if in.UserID != nil {
		if *in.UserID == 0 {
			m.UserID = nil
		} else {
			m.UserID = in.UserID
		}
		m.User = nil
	}
	if in.Disabled != nil {
		m.Disabled = boolFlag(*in.Disabled)
	}
}

func (h *MailHandler) List(c *gin.Context) {
	q := h.db.Model(&models.Mail{}).Order("nickname asc")
	q = like(c, q, "nickname", "nickname")
	q = like(c, q, "email", "email")
	q = like(c, q, "name_last", "name_last")

	var mails []models.Mail
	list(c, q, &mails, "User")
}

func (h *MailHandler) Get(c *gin.Context) {
	mailID, ok := parseID(c, "id", "mail")
	if !ok {
		return
	}
	var mail models.Mail
	if err := h.db.Preload("User").First(&mail, mailID).Error; err != nil {
		respondDBError(c, err, "Mail")
		return
	}
	c.JSON(http.StatusOK, mail)
}

func (h *MailHandler) Create(c *gin.Context, id *auth.Identity) {
	var input mailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Nickname == "" || input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nickname and password are required"})
		return
	}

	// Soft-deleted rows keep their nickname in the unique index.
	var taken int64
	if err := h.db.Unscoped().Model(&models.Mail{}).Where("nickname = ?", input.Nickname).Count(&taken).Error; err != nil {
		respondDBError(c, err, "Mail")
		return
	}
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Mail already exists"})
		return
	}

	mail := models.Mail{Nickname: input.Nickname}
	input.apply(&mail)

	created, err := h.yandex.CreateUser(c.Request.Context(), yandex.NewUser{
		Nickname:     mail.Nickname,
		Name:         yandex.Name{First: mail.NameFirst, Last: mail.NameLast, Middle: mail.NameMiddle},
		Password:     input.Password,
		Position:     mail.Position,
		DepartmentID: input.DepartmentID,
	})
	if err != nil {
		respondYandexError(c, err)
		return
	}
	mail.YandexID = created.ID
	mail.Email = created.Email

	if err := h.db.Create(&mail).Error; err != nil {
		if derr := h.yandex.DeleteUser(c.Request.Context(), created.ID); derr != nil {
			logger.Error("mailbox left in directory without a local row",
				zap.String("yandex_id", created.ID),
				zap.String("nickname", mail.Nickname),
				zap.Error(derr),
			)
		}
		respondDBError(c, err, "Mail")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "mail", mail.ID, mail)
	c.JSON(http.StatusCreated, mail)
}

func (h *MailHandler) Update(c *gin.Context, id *auth.Identity) {
	mailID, ok := parseID(c, "id", "mail")
	if !ok {
		return
	}
	var input mailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var mail models.Mail
	if err := h.db.First(&mail, mailID).Error; err != nil {
		respondDBError(c, err, "Mail")
		return
	}
	input.apply(&mail)

	// The row is written first and committed only once the directory
	// accepted the change.
	var remoteErr error
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&mail).Error; err != nil {
			return err
		}
		if mail.YandexID == "" {
			return nil
		}
		enabled := mail.Disabled == 0
		patch := yandex.UserPatch{
			Name:      &yandex.Name{First: mail.NameFirst, Last: mail.NameLast, Middle: mail.NameMiddle},
			Position:  &mail.Position,
			IsEnabled: &enabled,
		}
		if input.Password != "" {
			patch.Password = &input.Password
		}
		_, remoteErr = h.yandex.UpdateUser(c.Request.Context(), mail.YandexID, patch)
		return remoteErr
	})
	if remoteErr != nil {
		respondYandexError(c, remoteErr)
		return
	}
	if err != nil {
		respondDBError(c, err, "Mail")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "mail", mail.ID, mail)
	c.JSON(http.StatusOK, mail)
}

// Delete removes the mailbox in Yandex 360, then soft-deletes the row.
func (h *MailHandler) Delete(c *gin.Context, id *auth.Identity) {
	mailID, ok := parseID(c, "id", "mail")
	if !ok {
		return
	}
	var mail models.Mail
	if err := h.db.First(&mail, mailID).Error; err != nil {
		respondDBError(c, err, "Mail")
		return
	}

	if mail.YandexID != "" {
		err := h.yandex.DeleteUser(c.Request.Context(), mail.YandexID)
		if err != nil && !errors.Is(err, yandex.ErrNotFound) {
			respondYandexError(c, err)
			return
		}
	}

	if err := h.db.Delete(&mail).Error; err != nil {
		respondDBError(c, err, "Mail")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "mail", mail.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Mail deleted"})
}

func respondYandexError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, yandex.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Mail directory is not configured"})
	case errors.Is(err, yandex.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mailbox not found in directory"})
	default:
		logger.Warn("yandex request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Mail directory request failed"})
	}
}
