package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindInput decodes and validates the procedure input. Queries carry it
// JSON-encoded in the "input" query parameter; mutations send a JSON body.
func BindInput(c *gin.Context, dst any) error {
	if c.Request.Method != http.MethodGet {
		if err := c.ShouldBindJSON(dst); err != nil {
			return Wrap(CodeBadRequest, err, "invalid input: "+err.Error())
		}
		return nil
	}

	raw := c.Query("input")
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return Wrap(CodeBadRequest, err, "invalid input")
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return Wrap(CodeBadRequest, err, "invalid input: "+err.Error())
	}
	return nil
}
