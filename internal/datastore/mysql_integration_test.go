//go:build integration

package datastore

import (
	"context"
	"testing"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	mysqlcontainer "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// startMySQL brings up a disposable MySQL container and returns settings
// pointing at it.
func startMySQL(t *testing.T) *conf.Settings {
	t.Helper()

	ctx := context.Background()
	container, err := mysqlcontainer.Run(ctx, "mysql:8.0",
		mysqlcontainer.WithDatabase("pavewatch_test"),
		mysqlcontainer.WithUsername("pavewatch"),
		mysqlcontainer.WithPassword("pavewatch"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "Failed to start MySQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Username = "pavewatch"
	settings.Output.MySQL.Password = "pavewatch"
	settings.Output.MySQL.Database = "pavewatch_test"
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	return settings
}

func TestMySQLStoreRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	settings := startMySQL(t)
	ds := createDatabase(t, settings)

	assessment := sampleAssessment()
	require.NoError(t, ds.SaveAssessment(assessment))

	got, err := ds.GetAssessment(assessment.PublicID)
	require.NoError(t, err)
	assert.Equal(t, assessment.Score, got.Score)
	assert.Len(t, got.Detections, 2)

	// The read-only executor must work against MySQL's derived table rules.
	result, err := ds.ExecuteReadOnly(context.Background(),
		"SELECT defect_type, COUNT(*) FROM detections GROUP BY defect_type ORDER BY defect_type", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount())
}
