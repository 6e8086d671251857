package idgen_test

import (
	"strings"
	"testing"

	"github.com/kiranshivaraju/fabrica/internal/idgen"
	"github.com/stretchr/testify/assert"
)

func TestUUID_Prefixes(t *testing.T) {
	g := idgen.UUID{}

	assert.True(t, strings.HasPrefix(g.TableID(), "tbl_"))
	assert.True(t, strings.HasPrefix(g.ColumnID(), "col_"))
	assert.True(t, strings.HasPrefix(g.RelationshipID(), "rel_"))
}

func TestUUID_NoCollisionsUnderRapidAllocation(t *testing.T) {
	g := idgen.UUID{}
	seen := make(map[string]bool)

	for i := 0; i < 10000; i++ {
		for _, id := range []string{g.TableID(), g.ColumnID(), g.RelationshipID()} {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
}
