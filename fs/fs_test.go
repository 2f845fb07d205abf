package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	for _, name := range []string{
		"templates/email/_base.gohtml",
		"templates/email/_base.txt",
		"templates/email/password_reset_otp.txt",
		"migrations/00001_create_users.sql",
	} {
		b, err := fs.ReadFile(FS, name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, b, name)
	}
}
