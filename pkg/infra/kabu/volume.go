package kabu

// VolumeTracker は累積出来高の差分から1回の約定の出来高（Tick出来高）を求めます
type VolumeTracker struct {
	prevVolume float64 // 前回の累積出来高
	started    bool
}

// Next は今回の累積出来高を受け取り、前回からの増分を返します。
// 起動直後の1回目は基準値を記録するだけで0を返します
func (v *VolumeTracker) Next(tradingVolume float64) int64 {
	if !v.started {
		v.started = true
		v.prevVolume = tradingVolume
		return 0
	}

	tickVolume := tradingVolume - v.prevVolume
	// 気配値の更新のみで約定が発生していない場合や、日付が変わって累積が戻った場合
	if tickVolume <= 0 {
		if tradingVolume < v.prevVolume {
			v.prevVolume = tradingVolume
		}
		return 0
	}

	v.prevVolume = tradingVolume
	return int64(tickVolume)
}
