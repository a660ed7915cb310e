package service

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/user-management/internal/table"
	pkgmodel "gitlab.com/dirk.krummacker/user-management/pkg/model"
)

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// parseQuery inspects the URL parameters of a list request.
//
// The URL parameter 'firstname' keeps only users whose first name contains it, ignoring case.
//
// The URL parameter 'limit' specifies how many users matching the search criteria are returned.
// The URL parameter 'offset' specifies how many items from the sorted list of results are skipped
// in the beginning. Together with the 'limit' parameter, one can implement search result paging.
//
// The URL parameter 'orderby' specifies the user property by which the results shall be sorted.
// Valid values are 'id', 'firstName', 'lastName', 'email', 'phone', 'age' and 'birthDate'. If
// this URL parameter is not specified, the users keep the order of the underlying list.
//
// If the URL parameter 'ascending' is set to 'false' then the sort order is reversed, starting
// with the 'highest' value. If it is set to 'true', or if this URL parameter is omitted, the
// result starts with the lowest value.
func parseQuery(c *gin.Context) (query table.Query, success bool) {
	query.Filter = c.Query("firstname")
	query.Limit, query.Offset, success = parseLimitAndOffset(c)
	if !success {
		return query, false
	}
	query.OrderBy, query.Ascending, success = parseOrderbyAndAscending(c)
	return query, success
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set. A limit of 0 means no limit.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	var errConv error
	if limitAsString := c.Query("limit"); limitAsString != "" {
		limit, errConv = strconv.Atoi(limitAsString)
		if errConv != nil || limit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if offsetAsString := c.Query("offset"); offsetAsString != "" {
		offset, errConv = strconv.Atoi(offsetAsString)
		if errConv != nil || offset < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid offset parameter"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// parseOrderbyAndAscending inspects the URL parameters and determines values for the orderby and
// ascending values of the result set.
func parseOrderbyAndAscending(c *gin.Context) (orderby string, ascending bool, success bool) {
	orderby = c.Query("orderby")
	if orderby != "" && !table.Sortable(orderby) {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid orderby parameter"})
		return "", false, false
	}
	ascendingAsString := c.Query("ascending")
	if ascendingAsString == "" {
		ascendingAsString = "true"
	}
	if !contains(allowedAscending, ascendingAsString) {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid ascending parameter"})
		return orderby, false, false
	}
	return orderby, ascendingAsString == "true", true
}

// contains returns true if a string is present in a slice.
func contains(slice []string, str string) bool {
	for _, v := range slice {
		if v == str {
			return true
		}
	}
	return false
}
