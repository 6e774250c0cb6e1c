package serve

import (
	"time"

	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/platform/binance"
	"github.com/sig-0/p2prates/platform/okx"
)

// defaultPlatforms returns the default marketplace adapters
func defaultPlatforms() []platform.Platform {
	var (
		// Binance P2P search API
		binancePlatform = binance.New(time.Second * 15)

		// OKX P2P books API
		okxPlatform = okx.New(time.Second * 15)
	)

	return []platform.Platform{
		binancePlatform,
		okxPlatform,
	}
}
