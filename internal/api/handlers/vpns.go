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
	"supik-server/internal/routeros"
)

// VpnHandler manages PPP secrets on one router. Routes are guarded by the
// router ACL, so handlers only check that the rows belong to the router.
type VpnHandler struct {
	db     *gorm.DB
	dialer *routeros.Dialer
	audit  *audit.Service
}

func NewVpnHandler(db *gorm.DB, dialer *routeros.Dialer, audit *audit.Service) *VpnHandler {
	return &VpnHandler{db: db, dialer: dialer, audit: audit}
}

type vpnInput struct {
	Name          string  `json:"name"`
	Password      string  `json:"password"`
	Profile       *string `json:"profile"`
	Service       *string `json:"service"`
	RemoteAddress *string `json:"remote_address"`
	UserID        *uint   `json:"user_id"`
	Disabled      *bool   `json:"disabled"`
}

func (h *VpnHandler) router(c *gin.Context) (*models.Router, bool) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return nil, false
	}
	var router models.Router
	if err := h.db.First(&router, routerID).Error; err != nil {
		respondDBError(c, err, "Router")
		return nil, false
	}
	return &router, true
}

func (h *VpnHandler) vpn(c *gin.Context, routerID uint) (*models.VpnAccount, bool) {
	vpnID, ok := parseID(c, "vpnId", "VPN account")
	if !ok {
		return nil, false
	}
	var vpn models.VpnAccount
	if err := h.db.Where("router_id = ?", routerID).First(&vpn, vpnID).Error; err != nil {
		respondDBError(c, err, "VPN account")
		return nil, false
	}
	return &vpn, true
}

// List returns the VPN accounts recorded for the router.
func (h *VpnHandler) List(c *gin.Context) {
	routerID, ok := parseID(c, "id", "router")
	if !ok {
		return
	}
	q := h.db.Model(&models.VpnAccount{}).Where("router_id = ?", routerID).Order("name asc")
	q = like(c, q, "name", "name")

	var vpns []models.VpnAccount
	list(c, q, &vpns, "User")
}

// Secrets lists the PPP secrets live from the router.
func (h *VpnHandler) Secrets(c *gin.Context) {
	router, ok := h.router(c)
	if !ok {
		return
	}
	secrets, err := h.dialer.For(router).ListSecrets(c.Request.Context())
	if err != nil {
		respondRouterError(c, router, err)
		return
	}
	for i := range secrets {
		secrets[i].Password = ""
	}
	c.JSON(http.StatusOK, gin.H{"data": secrets})
}

func (h *VpnHandler) Create(c *gin.Context, id *auth.Identity) {
	router, ok := h.router(c)
	if !ok {
		return
	}
	var input vpnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Name == "" || input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and password are required"})
		return
	}
	if router.Disabled == 1 {
		c.JSON(http.StatusConflict, gin.H{"error": "Router is disabled"})
		return
	}

	vpn := models.VpnAccount{RouterID: router.ID, Name: input.Name}
	input.apply(&vpn)

	created, err := h.dialer.For(router).AddSecret(c.Request.Context(), secretOf(&vpn, input.Password))
	if err != nil {
		respondRouterError(c, router, err)
		return
	}
	vpn.RouterosID = created.ID

	if err := h.db.Create(&vpn).Error; err != nil {
		if rerr := h.dialer.For(router).RemoveSecret(c.Request.Context(), created.ID); rerr != nil {
			logger.Error("PPP secret left on router without a local row",
				zap.Uint("router_id", router.ID),
				zap.String("routeros_id", created.ID),
				zap.String("name", vpn.Name),
				zap.Error(rerr),
			)
		}
		respondDBError(c, err, "VPN account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "vpn", vpn.ID, vpn)
	c.JSON(http.StatusCreated, vpn)
}

func (h *VpnHandler) Update(c *gin.Context, id *auth.Identity) {
	router, ok := h.router(c)
	if !ok {
		return
	}
	vpn, ok := h.vpn(c, router.ID)
	if !ok {
		return
	}
	var input vpnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != "" {
		vpn.Name = input.Name
	}
	input.apply(vpn)

	// The row is written first and committed only once the router accepted
	// the change.
	var remoteErr error
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(vpn).Error; err != nil {
			return err
		}
		if vpn.RouterosID == "" {
			return nil
		}
		_, remoteErr = h.dialer.For(router).UpdateSecret(c.Request.Context(), vpn.RouterosID, secretOf(vpn, input.Password))
		return remoteErr
	})
	if remoteErr != nil {
		respondRouterError(c, router, remoteErr)
		return
	}
	if err != nil {
		respondDBError(c, err, "VPN account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "vpn", vpn.ID, vpn)
	c.JSON(http.StatusOK, vpn)
}

// Delete removes the secret from the router, then soft-deletes the row. A
// secret already gone from the router is not an error.
func (h *VpnHandler) Delete(c *gin.Context, id *auth.Identity) {
	router, ok := h.router(c)
	if !ok {
		return
	}
	vpn, ok := h.vpn(c, router.ID)
	if !ok {
		return
	}

	if vpn.RouterosID != "" {
		err := h.dialer.For(router).RemoveSecret(c.Request.Context(), vpn.RouterosID)
		if err != nil && !errors.Is(err, routeros.ErrNotFound) {
			respondRouterError(c, router, err)
			return
		}
	}

	if err := h.db.Delete(vpn).Error; err != nil {
		respondDBError(c, err, "VPN account")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "vpn", vpn.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "VPN account deleted"})
}

func (in *vpnInput) apply(v *models.VpnAccount) {
	if in.Profile != nil {
		v.Profile = *in.Profile
	}
	if in.Service != nil {
		v.Service = *in.Service
	}
	if in.RemoteAddress != nil {
		v.RemoteAddress = *in.RemoteAddress
	}
	if in.UserID != nil {
		v.UserID = in.UserID
	}
	if in.Disabled != nil {
		v.Disabled = boolFlag(*in.Disabled)
	}
}

func secretOf(v *models.VpnAccount, password string) routeros.Secret {
	return routeros.Secret{
		Name:          v.Name,
		Password:      password,
		Profile:       v.Profile,
		Service:       v.Service,
		RemoteAddress: v.RemoteAddress,
		Disabled:      routeros.FormatBool(v.Disabled == 1),
	}
}

func respondRouterError(c *gin.Context, router *models.Router, err error) {
	if errors.Is(err, routeros.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found on router"})
		return
	}
	logger.Warn("router request failed",
		zap.Uint("router_id", router.ID),
		zap.String("host", router.Host),
		zap.Error(err),
	)
	c.JSON(http.StatusBadGateway, gin.H{"error": "Router request failed"})
}
