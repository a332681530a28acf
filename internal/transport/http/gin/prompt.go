package httpgin

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/console"
)

const confirmHeader = "X-Confirm"

// headerPrompter confirms a prompt when the request carries its confirm
// label in X-Confirm. The last prompt is kept so the handler can send it
// back.
type headerPrompter struct {
	answer string
	asked  *console.Prompt
}

func promptFrom(c *gin.Context) *headerPrompter {
	return &headerPrompter{answer: strings.TrimSpace(c.GetHeader(confirmHeader))}
}

func (p *headerPrompter) Confirm(_ context.Context, prompt console.Prompt) (bool, error) {
	p.asked = &prompt
	return p.answer != "" && strings.EqualFold(p.answer, prompt.ConfirmLabel), nil
}
