package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCdrIndexes(t *testing.T) {
	indexes := CdrIndexes()
	require.NotEmpty(t, indexes)

	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		require.NotNil(t, idx.Options)
		require.NotNil(t, idx.Options.Name)
		names = append(names, *idx.Options.Name)
	}
	assert.Contains(t, names, "source_index")
	assert.Contains(t, names, "service_type_index")
	assert.Contains(t, names, "start_time_service_type_index")
	assert.Contains(t, names, "file_name_index")
}
