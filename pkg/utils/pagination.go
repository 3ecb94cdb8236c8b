package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/pagination"
)

// PaginationFromQuery 读取 ?page=&page_size=，非法值退回默认
func PaginationFromQuery(c *gin.Context) *pagination.Request {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return pagination.NewRequest(page, size)
}
