package risk

import "time"

// Clock is the time source injected into the runners. Production uses
// NowUTC; tests substitute a controllable clock to drive the lifecycle
// state machine deterministically.
type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NowUTC 生产环境统一用UTC，日志与交易所时间戳可直接对账。
var NowUTC Clock = utcClock{}
