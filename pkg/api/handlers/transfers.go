package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/byhat/loracore/pkg/api/types"
	"github.com/byhat/loracore/pkg/db"
)

// TransfersHandler handles transfer log endpoints
type TransfersHandler struct {
	database *db.DB
}

// NewTransfersHandler creates a new transfers handler
func NewTransfersHandler(database *db.DB) *TransfersHandler {
	return &TransfersHandler{database: database}
}

// List handles GET /transfers
// @Summary      List transfers
// @Description  Returns the most recent packet transfers for the active profile
// @Tags         transfers
// @Produce      json
// @Param        limit  query     int  false  "Maximum rows to return (default 100, max 500)"
// @Success      200    {object}  types.TransfersResponse
// @Failure      500    {object}  types.ErrorResponse  "Database error"
// @Router       /transfers [get]
func (h *TransfersHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	profile, err := h.database.Profiles().GetActive(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	transfers, err := h.database.Transfers().List(ctx, profile.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.TransfersResponse{
		Transfers: transfers,
		Count:     len(transfers),
	})
}

// Get handles GET /transfers/:id
// @Summary      Get a transfer
// @Description  Returns a single transfer record by ID
// @Tags         transfers
// @Produce      json
// @Param        id   path      string  true  "Transfer ID"
// @Success      200  {object}  types.TransferResponse
// @Failure      404  {object}  types.ErrorResponse  "Transfer not found"
// @Failure      500  {object}  types.ErrorResponse  "Database error"
// @Router       /transfers/{id} [get]
func (h *TransfersHandler) Get(c *gin.Context) {
	transfer, err := h.database.Transfers().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: "Transfer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "database_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.TransferResponse{Transfer: transfer})
}
