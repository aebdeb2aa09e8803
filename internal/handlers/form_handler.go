// Package handlers exposes the core's HTTP surface: the operator console's
// form-POST writes and the liveness/readiness endpoints.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Applier submits one operator write to the engine actor and reports
// whether it was accepted. internal/clock.Coordinator implements this by
// queuing the write onto the actor's single goroutine, so a form POST is
// serialized against engine ticks and UDP commands exactly like the
// source's select()-loop writes were.
type Applier interface {
	SubmitForm(path, value string) bool
}

// FormHandler is the only HTTP surface the simulation core consumes: a
// URL-encoded form body of "path.with.dots=value" pairs, interpreted
// exactly like a UDP POST whose command resolves to that path.
type FormHandler struct {
	applier Applier
}

// NewFormHandler constructs a FormHandler bound to the engine actor.
func NewFormHandler(a Applier) *FormHandler {
	return &FormHandler{applier: a}
}

// Apply handles POST /form: every key=value pair in the submitted form is
// routed independently. A route with fewer than two dot-separated parts,
// or an unknown file prefix, is rejected — but a form can carry
// several pairs, so the handler reports per-key pass/fail rather than
// failing the whole request on the first bad key.
func (h *FormHandler) Apply(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}

	results := make(map[string]bool, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) == 0 {
			continue
		}
		path := strings.TrimSpace(key)
		value := values[0]
		results[path] = h.applier.SubmitForm(path, value)
	}

	c.JSON(http.StatusOK, gin.H{"applied": results})
}
