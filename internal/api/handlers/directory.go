package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/models"
)

// DepartmentHandler manages departments. Guarded by department-access.
type DepartmentHandler struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewDepartmentHandler(db *gorm.DB, audit *audit.Service) *DepartmentHandler {
	return &DepartmentHandler{db: db, audit: audit}
}

type departmentInput struct {
	Name  string  `json:"name"`
	Title *string `json:"title"`
}

func (h *DepartmentHandler) List(c *gin.Context) {
	q := h.db.Model(&models.Department{}).Order("name asc")
	q = like(c, q, "name", "name")
	q = like(c, q, "title", "title")

	var departments []models.Department
	list(c, q, &departments)
}

func (h *DepartmentHandler) Get(c *gin.Context) {
	departmentID, ok := parseID(c, "id", "department")
	if !ok {
		return
	}
	var department models.Department
	if err := h.db.First(&department, departmentID).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}
	c.JSON(http.StatusOK, department)
}

func (h *DepartmentHandler) Create(c *gin.Context, id *auth.Identity) {
	var input departmentInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	department := models.Department{Name: input.Name}
	if input.Title != nil {
		department.Title = *input.Title
	}
	if err := h.db.Create(&department).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "department", department.ID, department)
	c.JSON(http.StatusCreated, department)
}

func (h *DepartmentHandler) Update(c *gin.Context, id *auth.Identity) {
	departmentID, ok := parseID(c, "id", "department")
	if !ok {
		return
	}
	var input departmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var department models.Department
	if err := h.db.First(&department, departmentID).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}
	if input.Name != "" {
		department.Name = input.Name
	}
	if input.Title != nil {
		department.Title = *input.Title
	}
	if err := h.db.Save(&department).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "department", department.ID, department)
	c.JSON(http.StatusOK, department)
}

func (h *DepartmentHandler) Delete(c *gin.Context, id *auth.Identity) {
	departmentID, ok := parseID(c, "id", "department")
	if !ok {
		return
	}
	var department models.Department
	if err := h.db.First(&department, departmentID).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}
	if err := h.db.Delete(&department).Error; err != nil {
		respondDBError(c, err, "Department")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "department", department.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Department deleted"})
}

// UserHandler manages employee records. Guarded by user-access.
type UserHandler struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewUserHandler(db *gorm.DB, audit *audit.Service) *UserHandler {
	return &UserHandler{db: db, audit: audit}
}

type userInput struct {
	Surname      *string `json:"surname"`
	Name         *string `json:"name"`
	Patronymic   *string `json:"patronymic"`
	Title        *string `json:"title"`
	Login        *string `json:"login"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	CellPhone    *string `json:"cell_phone"`
	DepartmentID *uint   `json:"department_id"`
	Disabled     *bool   `json:"disabled"`
}

func (in *userInput) apply(u *models.User) {
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{in.Surname, &u.Surname},
		{in.Name, &u.Name},
		{in.Patronymic, &u.Patronymic},
		{in.Title, &u.Title},
		{in.Login, &u.Login},
		{in.Email, &u.Email},
		{in.Phone, &u.Phone},
		{in.CellPhone, &u.CellPhone},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if in.DepartmentID != nil {
		if *in.DepartmentID == 0 {
			u.DepartmentID = nil
		} else {
			u.DepartmentID = in.DepartmentID
		}
		u.Department = nil
	}
	if in.Disabled != nil {
		u.Disabled = boolFlag(*in.Disabled)
	}
}

func (h *UserHandler) List(c *gin.Context) {
	q := h.db.Model(&models.User{}).Order("surname asc, name asc")
	q = like(c, q, "surname", "surname")
	q = like(c, q, "name", "name")
	q = like(c, q, "login", "login")
	if v := c.Query("department_id"); v != "" {
		if departmentID, err := strconv.ParseUint(v, 10, 32); err == nil {
			q = q.Where("department_id = ?", departmentID)
		}
	}

	var users []models.User
	list(c, q, &users, "Department")
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := parseID(c, "id", "user")
	if !ok {
		return
	}
	var user models.User
	if err := h.db.Preload("Department").First(&user, userID).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Create(c *gin.Context, id *auth.Identity) {
	var input userInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Name == nil || *input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	var user models.User
	input.apply(&user)
	if !h.departmentExists(c, user.DepartmentID) {
		return
	}
	if err := h.db.Create(&user).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionCreate, "user", user.ID, user)
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Update(c *gin.Context, id *auth.Identity) {
	userID, ok := parseID(c, "id", "user")
	if !ok {
		return
	}
	var input userInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}
	input.apply(&user)
	if user.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	if !h.departmentExists(c, user.DepartmentID) {
		return
	}
	if err := h.db.Save(&user).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionUpdate, "user", user.ID, user)
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c *gin.Context, id *auth.Identity) {
	userID, ok := parseID(c, "id", "user")
	if !ok {
		return
	}
	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}
	if err := h.db.Delete(&user).Error; err != nil {
		respondDBError(c, err, "User")
		return
	}

	recordAudit(c, h.audit, id, audit.ActionDelete, "user", user.ID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *UserHandler) departmentExists(c *gin.Context, departmentID *uint) bool {
	if departmentID == nil {
		return true
	}
	if err := h.db.First(&models.Department{}, *departmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown department"})
			return false
		}
		respondDBError(c, err, "Department")
		return false
	}
	return true
}
