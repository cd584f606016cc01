package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studylog/studylog-api/internal/cache"
)

// AdminHandler exposes operational endpoints restricted to the ADMIN role.
type AdminHandler struct {
	Cache *cache.Cache
}

func NewAdminHandler(ch *cache.Cache) *AdminHandler {
	return &AdminHandler{Cache: ch}
}

// InvalidateCache deletes every cache entry matching a glob pattern, e.g.
// "memberStats:*" after a bulk content import. The scan iterates in bounded
// batches, so wide patterns stay safe.
func (h *AdminHandler) InvalidateCache(c echo.Context) error {
	pattern := c.QueryParam("pattern")
	if pattern == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "pattern required"})
	}
	deleted, err := h.Cache.InvalidateByPattern(c.Request().Context(), pattern)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}
