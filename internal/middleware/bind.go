package middleware

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// BindOptionalJSON binds a JSON body that may be omitted. An empty body leaves
// obj untouched; anything else must decode and validate.
func BindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
