package handlers

import (
	"strconv"
	"strings"

	"github.com/fieldwave/promoter-backoffice/internal/authz"
	"github.com/gin-gonic/gin"
)

// Context keys set by the admin auth middleware.
const (
	ContextPrincipal = "principal"
	ContextUserID    = "userID"
)

// GetPrincipal returns the resolved principal for the request, if any.
func GetPrincipal(c *gin.Context) *authz.Principal {
	value, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	principal, ok := value.(*authz.Principal)
	if !ok {
		return nil
	}
	return principal
}

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

// pageParams holds parsed pagination query parameters.
type pageParams struct {
	Page    int
	PerPage int
}

// Offset returns the row offset for the page.
func (p pageParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// parsePagination reads page/per_page query parameters with defaults.
func parsePagination(c *gin.Context) pageParams {
	params := pageParams{Page: 1, PerPage: defaultPerPage}
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if page, errParse := strconv.Atoi(raw); errParse == nil && page > 0 {
			params.Page = page
		}
	}
	if raw := strings.TrimSpace(c.Query("per_page")); raw != "" {
		if perPage, errParse := strconv.Atoi(raw); errParse == nil && perPage > 0 {
			params.PerPage = perPage
		}
	}
	if params.PerPage > maxPerPage {
		params.PerPage = maxPerPage
	}
	return params
}

// pageMeta builds the pagination envelope section.
func pageMeta(params pageParams, total int64) gin.H {
	lastPage := total / int64(params.PerPage)
	if total%int64(params.PerPage) != 0 || lastPage == 0 {
		lastPage++
	}
	return gin.H{
		"current_page": params.Page,
		"per_page":     params.PerPage,
		"total":        total,
		"last_page":    lastPage,
	}
}

// parseIDParam parses the :id path parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// idChunkSize bounds the number of ids per bulk SQL statement.
const idChunkSize = 100

// chunkIDs splits ids into fixed-size chunks, dropping zero values.
func chunkIDs(ids []uint64) [][]uint64 {
	cleaned := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	var chunks [][]uint64
	for len(cleaned) > idChunkSize {
		chunks = append(chunks, cleaned[:idChunkSize])
		cleaned = cleaned[idChunkSize:]
	}
	if len(cleaned) > 0 {
		chunks = append(chunks, cleaned)
	}
	return chunks
}
