package fingerprint

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCoherentProfile(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)))

	for i := 0; i < 50; i++ {
		p := g.Generate()

		require.NotEmpty(t, p.UserAgent)
		require.NotEmpty(t, p.Headers["Accept"])
		assert.Equal(t, p.Locale, p.Headers["Accept-Language"])
		assert.Greater(t, p.Viewport.Width, 0)
		assert.Greater(t, p.Viewport.Height, 0)
		assert.Greater(t, p.HardwareConcurrency, 0)
		assert.Greater(t, p.DeviceMemory, 0)
		assert.True(t, strings.HasPrefix(p.Timezone, "Asia/"))

		if strings.Contains(p.UserAgent, "Firefox") {
			// Firefox never carries client-hint headers
			_, hasChUA := p.Headers["sec-ch-ua"]
			_, hasPlatform := p.Headers["sec-ch-ua-platform"]
			assert.False(t, hasChUA)
			assert.False(t, hasPlatform)
		} else {
			assert.NotEmpty(t, p.Headers["sec-ch-ua"])
			assert.Equal(t, "?0", p.Headers["sec-ch-ua-mobile"])
			assert.NotEmpty(t, p.Headers["sec-ch-ua-platform"])
		}

		if strings.Contains(p.UserAgent, "Edg/") {
			assert.Contains(t, p.Headers["sec-ch-ua"], "Microsoft Edge")
		}
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	g1 := NewGenerator(rand.New(rand.NewSource(42)))
	g2 := NewGenerator(rand.New(rand.NewSource(42)))

	for i := 0; i < 10; i++ {
		assert.Equal(t, g1.Generate(), g2.Generate())
	}
}

func TestSpoofScript(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(7)))
	p := g.Generate()

	script := p.SpoofScript()
	assert.Contains(t, script, "'webdriver'")
	assert.Contains(t, script, "undefined")
	assert.Contains(t, script, "hardwareConcurrency")
	assert.Contains(t, script, "deviceMemory")
	assert.Contains(t, script, "'languages'")
}
