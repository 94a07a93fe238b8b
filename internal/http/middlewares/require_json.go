package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects write requests whose body is not JSON. Routes listed in
// multipartRoutes (gin route templates) may also post multipart forms.
// Bodyless writes such as approve or logout pass through.
func RequireJSON(multipartRoutes ...string) gin.HandlerFunc {
	multipart := make(map[string]struct{}, len(multipartRoutes))
	for _, r := range multipartRoutes {
		multipart[r] = struct{}{}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if c.Request.ContentLength == 0 {
				break
			}

			ct := strings.ToLower(c.GetHeader("Content-Type"))
			// allow "application/json; charset=utf-8"
			if strings.HasPrefix(ct, "application/json") {
				break
			}
			if _, ok := multipart[c.FullPath()]; ok && strings.HasPrefix(ct, "multipart/form-data") {
				break
			}

			abortWithError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}
		c.Next()
	}
}
