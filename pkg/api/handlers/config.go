package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/byhat/loracore/pkg/api/types"
	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/schema"
)

// ConfigHandler handles link configuration endpoints
type ConfigHandler struct {
	database  *db.DB
	validator *schema.Validator
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(database *db.DB, validator *schema.Validator) *ConfigHandler {
	return &ConfigHandler{database: database, validator: validator}
}

// Get handles GET /config
// @Summary      Get link configuration
// @Description  Returns the stored link configuration for the active profile
// @Tags         config
// @Produce      json
// @Success      200  {object}  types.ConfigResponse
// @Failure      500  {object}  types.ErrorResponse  "Database error"
// @Router       /config [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.database.ActiveConfig(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	linkCfg := cfg.Link
	if linkCfg == nil {
		linkCfg = db.DefaultLinkConfig()
	}

	c.JSON(http.StatusOK, types.ConfigResponse{Config: linkCfg})
}

// Put handles PUT /config
// @Summary      Update link configuration
// @Description  Validates the document against the link config schema and persists it. The daemon reads it at startup; POST /port/open uses the device and baud of its own request.
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        request  body      db.LinkConfig  true  "Link configuration document"
// @Success      200      {object}  types.ConfigResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid or rejected document"
// @Failure      500      {object}  types.ErrorResponse  "Database error"
// @Router       /config [put]
func (h *ConfigHandler) Put(c *gin.Context) {
	ctx := c.Request.Context()

	var doc map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&doc); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	// Validate before persisting
	if err := h.validator.Validate(json.RawMessage(db.LinkConfigSchema), doc); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}
	linkCfg := &db.LinkConfig{}
	if err := json.Unmarshal(raw, linkCfg); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	profile, err := h.database.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "no_active_profile",
				Message: "No active profile to store the config under",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	if err := h.database.LinkConfigs().Set(ctx, profile.ID, linkCfg); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ConfigResponse{Config: linkCfg})
}
