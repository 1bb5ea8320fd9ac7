package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildLoggers_CarryContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	component := WithComponent("backup")
	component.Info().Str("target", "/srv/app").Msg("snapshot created")

	sess := WithSession("abc-123")
	sess.Warn().Msg("journal unavailable")

	stage := WithStage("migrating")
	stage.Debug().Msg("running cleanup")

	out := buf.String()
	assert.Contains(t, out, `"component":"backup"`)
	assert.Contains(t, out, `"target":"/srv/app"`)
	assert.Contains(t, out, `"message":"snapshot created"`)
	assert.Contains(t, out, `"session_id":"abc-123"`)
	assert.Contains(t, out, `"stage":"migrating"`)
}

func TestInit_LevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	component := WithComponent("command")
	component.Debug().Msg("running command")
	component.Warn().Msg("slow command")

	out := buf.String()
	assert.NotContains(t, out, "running command")
	assert.Contains(t, out, "slow command")
}
