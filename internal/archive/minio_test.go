package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradexpert/whatsnew-admin/internal/config"
)

func TestKeyUsesUTCDay(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	at := time.Date(2024, 5, 2, 3, 0, 0, 0, ist) // 1 May 21:30 UTC
	assert.Equal(t, "submissions/2024/05/01/d-1.json", Key("d-1", at))
}

func TestNewMinIOArchiveRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOArchive(context.Background(), config.MinIOConfig{})
	assert.Error(t, err)
}
