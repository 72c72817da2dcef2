package utils

import (
	"crypto/md5"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SendJSONError sends a standardized JSON error response and logs the internal error.
// For 5xx errors, it sends a generic public message while logging the actual internalError.
// For 4xx errors, the publicMsg is shown to the client, and internalError (if provided) is logged.
func SendJSONError(c *gin.Context, statusCode int, publicMsg string, internalError error) {
	if internalError != nil {
		log.Printf("ERROR: Handler error: status_code=%d, public_message='%s', internal_error='%v', path='%s'",
			statusCode, publicMsg, internalError, c.Request.URL.Path)
	} else {
		log.Printf("INFO: Handler response: status_code=%d, public_message='%s', path='%s'",
			statusCode, publicMsg, c.Request.URL.Path)
	}

	if statusCode >= http.StatusInternalServerError && publicMsg == "" {
		publicMsg = "An unexpected error occurred. Please try again later."
	}

	c.AbortWithStatusJSON(statusCode, gin.H{"error": publicMsg})
}

// AnonymousFingerprint derives the opaque quota identity for an
// unauthenticated caller from its client IP. The hash keeps raw addresses
// out of the quota table while staying stable for the same caller.
func AnonymousFingerprint(clientIP string) string {
	sum := md5.Sum([]byte(clientIP))
	return "anon_" + hex.EncodeToString(sum[:])[:16]
}
