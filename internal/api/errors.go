package api

import (
	"errors"
	"net/http"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryAfterSeconds = "5"

type errorMapping struct {
	err    error
	status int
	code   string
}

// Specific sentinels come before the ErrNotFound they wrap.
var errorMappings = []errorMapping{
	{models.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{models.ErrTransactionNotFound, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrOrderNotPending, http.StatusConflict, "ORDER_NOT_PENDING"},
	{models.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
	{models.ErrProductInUse, http.StatusConflict, "PRODUCT_IN_USE"},
	{models.ErrDuplicateKey, http.StatusConflict, "DUPLICATE_KEY"},
	{models.ErrProductNameTaken, http.StatusConflict, "PRODUCT_NAME_TAKEN"},
	{models.ErrQuantityExceedsAvailable, http.StatusUnprocessableEntity, "QUANTITY_EXCEEDS_AVAILABLE"},
	{models.ErrProductUnavailable, http.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE"},
	{models.ErrInvalidLineItem, http.StatusBadRequest, "INVALID_LINE_ITEM"},
	{models.ErrInvalidDecision, http.StatusBadRequest, "INVALID_DECISION"},
	{models.ErrInvalidProduct, http.StatusBadRequest, "INVALID_PRODUCT"},
	{models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{models.ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
}

// respondError writes err as a JSON error with the status its sentinel maps to
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status == http.StatusServiceUnavailable {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.JSON(m.status, gin.H{
			"error":   m.err.Error(),
			"code":    m.code,
			"details": err.Error(),
		})
		return
	}

	util.GetLogger().Error("Unhandled request error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
		"code":  "INTERNAL",
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"code":    "INVALID_REQUEST",
		"details": err.Error(),
	})
}
