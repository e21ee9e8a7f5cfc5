package sql

import (
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	t.Run("Initialize database extensions", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		var exists bool
		err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector');").Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "pgvector extension should be created")
	})

	t.Run("Initialize database extensions is idempotent", func(t *testing.T) {
		assert.NoError(t, Init(db.Instance))
		assert.NoError(t, Init(db.Instance))
	})
}

func TestLoadChunksSql(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	functionExists := func(t *testing.T, name string) bool {
		var exists bool
		err := db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);", name).Scan(&exists)
		require.NoError(t, err)
		return exists
	}

	t.Run("Load chunks SQL functions", func(t *testing.T) {
		err := LoadChunksSql(db.Instance, false)
		assert.NoError(t, err)

		for _, funcName := range ChunksFunctions {
			assert.True(t, functionExists(t, funcName), "Function %s should exist", funcName)
		}
	})

	t.Run("Load chunks SQL is idempotent without force", func(t *testing.T) {
		assert.NoError(t, LoadChunksSql(db.Instance, false))
	})

	t.Run("Load chunks SQL with force reloads", func(t *testing.T) {
		assert.NoError(t, LoadChunksSql(db.Instance, true))

		for _, funcName := range ChunksFunctions {
			assert.True(t, functionExists(t, funcName), "Function %s should exist after force reload", funcName)
		}
	})

	t.Run("Init chunks creates tables and counter trigger", func(t *testing.T) {
		_, err := db.Instance.Exec(`SELECT init_chunks($1);`, 3)
		require.NoError(t, err)
		defer db.Instance.Exec(`SELECT drop_chunks();`)

		_, err = db.Instance.Exec(
			`SELECT * FROM insert_chunk(NULL, 'default', 'data/ipc.pdf', 0, 'Section 1', '[1,0,0]', 'model-a', '{}')`,
		)
		require.NoError(t, err)

		var total int64
		err = db.Instance.QueryRow(`SELECT count_chunks('default');`).Scan(&total)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "Expected trigger to maintain chunk count")

		var dim int
		err = db.Instance.QueryRow(`SELECT select_chunks_dimension();`).Scan(&dim)
		require.NoError(t, err)
		assert.Equal(t, 3, dim)
	})

	t.Run("Reject empty source", func(t *testing.T) {
		_, err := db.Instance.Exec(`SELECT init_chunks($1);`, 3)
		require.NoError(t, err)
		defer db.Instance.Exec(`SELECT drop_chunks();`)

		_, err = db.Instance.Exec(
			`SELECT * FROM insert_chunk(NULL, 'default', '', 0, 'Section 1', '[1,0,0]', 'model-a', '{}')`,
		)
		assert.Error(t, err, "Expected empty source to violate the check constraint")
	})
}
