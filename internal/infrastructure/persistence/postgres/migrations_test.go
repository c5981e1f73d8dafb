package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrations_OrderedAndReversible(t *testing.T) {
	migs := Migrations()

	for i, m := range migs {
		assert.Equal(t, i+1, m.Version, "migration %s", m.Name)
		assert.NotEmpty(t, m.UpSQL, "migration %s", m.Name)
		assert.NotEmpty(t, m.DownSQL, "migration %s", m.Name)
	}
	assert.Contains(t, migs[1].UpSQL, "REFERENCES members(id)")
	assert.Contains(t, migs[2].UpSQL, "REFERENCES members(id)")
}
