// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blinklabs-io/gavel/governance"
)

const (
	contextKeyCaller    = "caller"
	contextKeyRequestID = "request_id"
	maxRequestIDLength  = 128
)

// requestID tags every request with an ID, reusing one supplied by the client
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(contextKeyRequestID),
		)
	}
}

// requireCaller rejects requests without a caller address
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(CallerHeader))
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error:   errCodeBadRequest,
				Message: "missing " + CallerHeader + " header",
			})
			return
		}
		c.Set(contextKeyCaller, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) governance.Address {
	return governance.Address(c.GetString(contextKeyCaller))
}
