package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
)

func newController(fake *command.Fake) *Controller {
	return NewController(fake, &config.Settings{PHPBin: "php"})
}

func TestEnableDisable(t *testing.T) {
	fake := command.NewFake()
	c := newController(fake)

	require.NoError(t, c.Enable(context.Background(), "/srv/app"))
	require.NoError(t, c.Disable(context.Background(), "/srv/app"))

	assert.Equal(t, []string{"php artisan down", "php artisan up"}, fake.CallLines())
	for _, call := range fake.Calls() {
		assert.Equal(t, "/srv/app", call.Dir)
	}
}

func TestEnable_Failure(t *testing.T) {
	fake := command.NewFake()
	fake.FailWith("php artisan down", errors.New("artisan missing"))
	c := newController(fake)

	err := c.Enable(context.Background(), "/srv/app")
	assert.ErrorContains(t, err, "enable maintenance mode")
}

func TestClearCache(t *testing.T) {
	fake := command.NewFake()
	c := newController(fake)

	require.NoError(t, c.ClearCache(context.Background(), "/srv/app"))
	assert.Equal(t, []string{"php artisan config:clear", "php artisan cache:clear"}, fake.CallLines())
}

func TestClearCache_StopsOnFirstFailure(t *testing.T) {
	fake := command.NewFake()
	fake.FailWith("php artisan config:clear", errors.New("broken"))
	c := newController(fake)

	err := c.ClearCache(context.Background(), "/srv/app")
	require.Error(t, err)
	assert.Equal(t, []string{"php artisan config:clear"}, fake.CallLines())
}
