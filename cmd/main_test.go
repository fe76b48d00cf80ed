package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify/config"
)

func TestNewCLI_Commands(t *testing.T) {
	cli := NewCLI()

	var names []string
	for _, cmd := range cli.cmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"start", "workers", "migrate", "config"}, names)

	flag := cli.cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "./artify.json", flag.DefValue)
}

func TestMigrationSource(t *testing.T) {
	migrations, err := migrationSource().FindMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, "1_users.sql", migrations[0].Id)
	assert.Equal(t, "2_gallery_images.sql", migrations[1].Id)
	assert.Equal(t, "3_credits.sql", migrations[2].Id)
	for _, m := range migrations {
		assert.NotEmpty(t, m.Up, m.Id)
		assert.NotEmpty(t, m.Down, m.Id)
	}
}

func TestInitializeQueues(t *testing.T) {
	queues := initializeQueues(&config.Configuration{Queue: config.QueueConfig{WebhookQueue: "hooks"}})
	assert.Equal(t, map[string]int{"hooks": 1}, queues)
}
