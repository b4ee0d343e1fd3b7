package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/adminsuite/backoffice/pkg/apiresponses"
	"github.com/adminsuite/backoffice/pkg/audit"
	"github.com/adminsuite/backoffice/pkg/audit/track"
	"github.com/adminsuite/backoffice/pkg/models"
	"github.com/adminsuite/backoffice/pkg/system"
)

const (
	userEntity       = "User"
	permissionEntity = "Permission"
)

// UserController manages admin users and their role permissions. Permission
// grants and denies go to the trail as domain actions, not entity diffs.
type UserController struct {
	log        *zap.SugaredLogger
	db         *gorm.DB
	audit      *audit.Service
	middleware gin.HandlerFunc
}

func NewUserController(log *zap.SugaredLogger, db *gorm.DB, svc *audit.Service, middleware gin.HandlerFunc) *UserController {
	return &UserController{
		log:        log,
		db:         db,
		audit:      svc,
		middleware: middleware,
	}
}

func (UserController) BasePath() string {
	return "users/"
}

func (uc *UserController) Register(rg *gin.RouterGroup) error {
	rg.GET("", uc.handleList)
	rg.GET("/:id", uc.handleGet)
	rg.POST("", uc.handleCreate)
	rg.PUT("/:id", uc.handleUpdate)
	rg.DELETE("/:id", uc.handleDelete)
	rg.POST("/roles/:roleId/permissions/grant", uc.handleGrantPermission)
	rg.POST("/roles/:roleId/permissions/deny", uc.handleDenyPermission)

	return nil
}

func (uc UserController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{uc.middleware}
}

func (uc UserController) handleList(c *gin.Context) {
	var users []models.User
	if err := uc.db.WithContext(c.Request.Context()).Preload("Roles").Order("id").Find(&users).Error; err != nil {
		apiresponses.RespondInternalError(c, "list users", err, system.GetReqLogger(c, uc.log))
		return
	}
	apiresponses.RespondOK(c, users)
}

func (uc UserController) handleGet(c *gin.Context) {
	var user models.User
	err := uc.db.WithContext(c.Request.Context()).Preload("Roles").First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, userEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load user", err, system.GetReqLogger(c, uc.log))
		return
	}
	apiresponses.RespondOK(c, user)
}

type userCreateRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password" binding:"required,min=12"`
}

func (uc UserController) handleCreate(c *gin.Context) {
	var request userCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		apiresponses.RespondInternalError(c, "hash password", err, system.GetReqLogger(c, uc.log))
		return
	}

	user := models.User{
		Username:     request.Username,
		Email:        request.Email,
		DisplayName:  request.DisplayName,
		PasswordHash: string(hash),
		Active:       true,
	}

	if err := uc.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			apiresponses.RespondConflict(c, "username or email already exists")
			return
		}
		apiresponses.RespondInternalError(c, "create user", err, system.GetReqLogger(c, uc.log))
		return
	}

	// The password hash field is dropped by the capture exclusion list.
	uc.audit.Capture(c.Request.Context(), []audit.EntityChange{
		track.Created(userEntity, track.Key(user.ID), user),
	})

	apiresponses.RespondCreated(c, user)
}

type userUpdateRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName"`
	Active      *bool  `json:"active"`
}

func (uc UserController) handleUpdate(c *gin.Context) {
	var request userUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	var user models.User
	err := uc.db.WithContext(ctx).First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, userEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load user", err, system.GetReqLogger(c, uc.log))
		return
	}

	before := user
	user.Email = request.Email
	user.DisplayName = request.DisplayName
	if request.Active != nil {
		user.Active = *request.Active
	}

	if err := uc.db.WithContext(ctx).Save(&user).Error; err != nil {
		apiresponses.RespondInternalError(c, "update user", err, system.GetReqLogger(c, uc.log))
		return
	}

	uc.audit.Capture(ctx, []audit.EntityChange{
		track.Updated(userEntity, track.Key(user.ID), before, user),
	})

	apiresponses.RespondOK(c, user)
}

func (uc UserController) handleDelete(c *gin.Context) {
	ctx := c.Request.Context()

	var user models.User
	err := uc.db.WithContext(ctx).First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, userEntity, c.Param("id"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load user", err, system.GetReqLogger(c, uc.log))
		return
	}

	if err := uc.db.WithContext(ctx).Delete(&user).Error; err != nil {
		apiresponses.RespondInternalError(c, "delete user", err, system.GetReqLogger(c, uc.log))
		return
	}

	uc.audit.Capture(ctx, []audit.EntityChange{
		track.Deleted(userEntity, track.Key(user.ID), user),
	})

	apiresponses.RespondNoContent(c)
}

type permissionRequest struct {
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func (uc UserController) handleGrantPermission(c *gin.Context) {
	uc.writePermission(c, false)
}

func (uc UserController) handleDenyPermission(c *gin.Context) {
	uc.writePermission(c, true)
}

// writePermission records a grant or deny for a role. A deny overrides a
// grant of the same permission inherited elsewhere.
func (uc UserController) writePermission(c *gin.Context, denied bool) {
	var request permissionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	var role models.Role
	err := uc.db.WithContext(ctx).First(&role, "id = ?", c.Param("roleId")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apiresponses.RespondNotFound(c, "Role", c.Param("roleId"))
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "load role", err, system.GetReqLogger(c, uc.log))
		return
	}

	permission := models.Permission{
		RoleID:   role.ID,
		Resource: request.Resource,
		Action:   request.Action,
		Denied:   denied,
	}
	if err := uc.db.WithContext(ctx).Create(&permission).Error; err != nil {
		apiresponses.RespondInternalError(c, "write permission", err, system.GetReqLogger(c, uc.log))
		return
	}

	auditAction := audit.ActionGrantPermission
	if denied {
		auditAction = audit.ActionDenyPermission
	}
	uc.audit.Record(ctx, auditAction, permissionEntity, fmt.Sprint(permission.ID), map[string]interface{}{
		"roleId":   role.ID,
		"roleName": role.Name,
		"resource": permission.Resource,
		"action":   permission.Action,
		"denied":   permission.Denied,
	})

	apiresponses.RespondCreated(c, permission)
}
