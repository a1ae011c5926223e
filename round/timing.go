package round

import "time"

// OverlayWait 倒计时开始前的遮罩等待：首回合只有“下一回合”遮罩，之后还要加上结果遮罩
func OverlayWait(firstRound bool, overlay time.Duration) time.Duration {
	if firstRound {
		return overlay
	}
	return 2 * overlay
}

// PureRoundTime 服务端给出的回合时间（秒）扣掉遮罩后的纯绘画时间
func PureRoundTime(firstRound bool, roundTime int, overlay time.Duration) int {
	pure := roundTime - int(OverlayWait(firstRound, overlay)/time.Second)
	if pure < 0 {
		return 0
	}
	return pure
}

// Band 进度条档位
type Band struct {
	Name    string
	Color   string
	Pulsate bool
}

var (
	BandNominal  = Band{Name: "nominal", Color: "#4caf50"}
	BandCaution  = Band{Name: "caution", Color: "#af824c"}
	BandWarning  = Band{Name: "warning", Color: "#af4c79"}
	BandCritical = Band{Name: "critical", Color: "#e32e2e", Pulsate: true}
)

// Progress 剩余时间百分比（上限 100）与对应档位
func Progress(remaining, total int) (float64, Band) {
	if total <= 0 {
		return 0, BandCritical
	}
	pct := float64(remaining) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	switch {
	case pct > 50:
		return pct, BandNominal
	case pct > 30:
		return pct, BandCaution
	case pct > 20:
		return pct, BandWarning
	}
	return pct, BandCritical
}
