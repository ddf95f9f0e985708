package smtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeMessage(t *testing.T) {
	subject, body := CodeMessage("042917", 10*time.Minute)
	assert.Equal(t, "Your verification code", subject)
	assert.Contains(t, body, "042917")
	assert.Contains(t, body, "10 minutes")
}
