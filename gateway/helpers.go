package gateway

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// pagination reads the conventional limit/offset query params, defaulting
// to a page of 20 and never allowing more than 100 at once.
func pagination(c echo.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// idParam parses the ":id" path parameter as a document identifier.
func idParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// ownerScoped reports whether the caller may act on a resource owned by
// ownerID: admins may act on anything, everyone else only on their own.
func ownerScoped(p *principal, ownerID string) bool {
	if p == nil {
		return false
	}
	return p.Role == "admin" || p.UserID == ownerID
}
