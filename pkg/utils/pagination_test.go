package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/pkg/pagination"
)

func TestPaginationFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	query := func(raw string) *pagination.Request {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/orders?"+raw, nil)
		return PaginationFromQuery(c)
	}

	p := query("")
	assert.Equal(t, pagination.DefaultPage, p.Page)
	assert.Equal(t, pagination.DefaultPageSize, p.Limit())
	assert.Zero(t, p.Offset())

	p = query("page=3&page_size=5000")
	assert.Equal(t, pagination.MaxPageSize, p.Limit())
	assert.Equal(t, 2*pagination.MaxPageSize, p.Offset())

	p = query("page=abc&page_size=-1")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, pagination.DefaultPageSize, p.PageSize)
}
